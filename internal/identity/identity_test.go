package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want StorageKey
	}{
		{"alice@example.com", "alice-example-com"},
		{"first.last@mail.co.uk", "first-last-mail-co-uk"},
		{"no-special", "no-special"},
		{"", ""},
		{"..@@", "----"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), tc.in)
		// 同一输入多次调用结果一致
		assert.Equal(t, Normalize(tc.in), Normalize(tc.in))
	}
}

func TestNormalizeIsStableOnKeys(t *testing.T) {
	key := Normalize("bob@example.com")
	assert.Equal(t, key, Normalize(string(key)))
}

func TestProfilePictureFileName(t *testing.T) {
	assert.Equal(t, "bob-example-com_profile_picture.png", ProfilePictureFileName(Normalize("bob@example.com")))
}

func TestMessageID(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 5, time.UTC)
	id := MessageID("bob-example-com", "alice-example-com", at)
	assert.Equal(t, "bob-example-com_alice-example-com_20240301T123000.000000005Z", id)
}
