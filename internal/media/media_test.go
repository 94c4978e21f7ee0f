package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/logger"
	"messenger/internal/middleware"
	"messenger/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var po s3.PresignOptions
	for _, o := range opts {
		o(&po)
	}
	f.expires = po.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + aws.ToString(in.Key)}, nil
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "message_images/photo_message_1.png", MessageImageKey("photo_message_1.png"))
	assert.Equal(t, "images/alice-x-com_profile_picture.png", ProfilePictureKey("alice-x-com"))
}

func TestS3StorePublicURL(t *testing.T) {
	up := &fakeUploader{}
	s := newS3Store(up, &fakePresigner{}, "chat-media", "us-east-1", true, time.Minute)

	uri, err := s.Upload(context.Background(), "message_images/a b.png", "image/png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "https://chat-media.s3.us-east-1.amazonaws.com/message_images/a%20b.png", uri)

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "chat-media", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "image/png", aws.ToString(up.inputs[0].ContentType))
	assert.Equal(t, pngHeader, up.bodies[0])
}

func TestS3StorePresigned(t *testing.T) {
	pre := &fakePresigner{}
	s := newS3Store(&fakeUploader{}, pre, "chat-media", "us-east-1", false, 15*time.Minute)

	uri, err := s.Upload(context.Background(), "images/a_profile_picture.png", "image/png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/images/a_profile_picture.png", uri)
	assert.Equal(t, 15*time.Minute, pre.expires)
}

func TestS3StoreUploadFailureIsUnavailable(t *testing.T) {
	s := newS3Store(&fakeUploader{err: errors.New("timeout")}, &fakePresigner{}, "b", "r", true, time.Minute)
	_, err := s.Upload(context.Background(), "k", "image/png", pngHeader)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

type memStore struct {
	objects map[string][]byte
	err     error
}

func (m *memStore) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.objects[key] = data
	return "mem://" + key, nil
}

func upload(t *testing.T, h *Handler, method, path, field, filename string, data []byte, authed bool, fields ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if authed {
			middleware.SetSession(c, model.Session{AccountID: "alice-x-com", Email: "alice@x.com"})
		}
		c.Next()
	})
	r.POST("/api/media/photos", h.UploadPhoto)
	r.PUT("/api/media/profile-picture", h.UploadProfilePicture)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i := 0; i+1 < len(fields); i += 2 {
		require.NoError(t, mw.WriteField(fields[i], fields[i+1]))
	}
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadPhoto(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	h := NewHandler(store, logger.Nop())
	h.newID = func() string { return "fixed" }

	w := upload(t, h, http.MethodPost, "/api/media/photos", "file", "cat.JPG", pngHeader, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "message_images/photo_message_fixed.jpg", resp.Key)
	assert.Equal(t, "mem://message_images/photo_message_fixed.jpg", resp.URL)
	assert.Equal(t, pngHeader, store.objects[resp.Key])
}

func TestUploadPhotoNamedByMessageID(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	h := NewHandler(store, logger.Nop())
	h.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }

	w := upload(t, h, http.MethodPost, "/api/media/photos", "file", "p.png", pngHeader, true,
		"recipient_email", "bob@y.com")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, store.objects,
		"message_images/photo_message_bob-y-com_alice-x-com_20240301T123000.000000000Z.png")
}

func TestUploadProfilePicture(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	h := NewHandler(store, logger.Nop())

	w := upload(t, h, http.MethodPut, "/api/media/profile-picture", "file", "me.png", pngHeader, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, store.objects, "images/alice-x-com_profile_picture.png")
}

func TestUploadRejections(t *testing.T) {
	cases := []struct {
		name   string
		field  string
		data   []byte
		authed bool
		err    error
		status int
	}{
		{"unauthenticated", "file", pngHeader, false, nil, http.StatusUnauthorized},
		{"missing file", "other", pngHeader, true, nil, http.StatusBadRequest},
		{"not an image", "file", []byte("plain text, not an image"), true, nil, http.StatusBadRequest},
		{"store unavailable", "file", pngHeader, true, apperr.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&memStore{objects: map[string][]byte{}, err: tc.err}, logger.Nop())
			w := upload(t, h, http.MethodPost, "/api/media/photos", tc.field, "x.png", tc.data, tc.authed)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}
