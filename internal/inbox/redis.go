package inbox

import (
	"context"
	"fmt"
	"strconv"

	"messenger/internal/apperr"
	"messenger/internal/constants"
	"messenger/internal/identity"
	"messenger/internal/model"
	"messenger/internal/protocol"

	"github.com/go-redis/redis/v8"
)

// 摘要 hash 的字段
const (
	fieldOtherUser = "other_user_email"
	fieldName      = "name"
	fieldDate      = "date"
	fieldMessage   = "message"
	fieldIsRead    = "is_read"
	fieldPosition  = "position"
)

// 只有摘要已存在时才写最新消息字段，并刷新排序分数。
// 已记录的序号不小于新序号时保持原样
var applyLatestScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
local current = tonumber(redis.call('HGET', KEYS[1], 'position') or '-1')
if current >= tonumber(ARGV[6]) then
	return 1
end
redis.call('HSET', KEYS[1], 'date', ARGV[1], 'message', ARGV[2], 'is_read', ARGV[3], 'position', ARGV[6])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[5])
return 1
`)

var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'other_user_email', ARGV[1], 'name', ARGV[2], 'date', ARGV[3],
	'message', ARGV[4], 'is_read', ARGV[5], 'position', ARGV[6])
redis.call('ZADD', KEYS[2], ARGV[7], ARGV[8])
return 1
`)

var markReadScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'is_read', '1')
return 1
`)

// RedisIndex 基于 Redis 的索引
//
// summary:<user>:<conv> 为单条摘要的 hash，summaries:<user> 为按最新消息时间打分的有序集合。
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex 创建 Redis 索引
func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

func summaryKey(user identity.StorageKey, conversationID string) string {
	return fmt.Sprintf(constants.RedisKeySummary, user, conversationID)
}

func userKey(user identity.StorageKey) string {
	return fmt.Sprintf(constants.RedisKeyUserSummaries, user)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s 失败: %w: %v", op, apperr.ErrUnavailable, err)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func score(latest model.LatestMessage) float64 {
	return float64(latest.Date.UnixMilli())
}

// UpsertSummary 插入或替换摘要
func (r *RedisIndex) UpsertSummary(ctx context.Context, user identity.StorageKey, summary model.ConversationSummary) error {
	if err := validateSummary(user, summary); err != nil {
		return err
	}
	key := summaryKey(user, summary.ConversationID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldOtherUser, summary.OtherUserEmail.String(),
			fieldName, summary.Name,
			fieldDate, protocol.FormatDate(summary.LatestMessage.Date),
			fieldMessage, summary.LatestMessage.Message,
			fieldIsRead, boolField(summary.LatestMessage.IsRead),
			fieldPosition, summary.LatestMessage.Position,
		)
		pipe.ZAdd(ctx, userKey(user), &redis.Z{Score: score(summary.LatestMessage), Member: summary.ConversationID})
		return nil
	})
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// InsertSummary 摘要不存在时写入
func (r *RedisIndex) InsertSummary(ctx context.Context, user identity.StorageKey, summary model.ConversationSummary) (bool, error) {
	if err := validateSummary(user, summary); err != nil {
		return false, err
	}
	n, err := insertScript.Run(ctx, r.client,
		[]string{summaryKey(user, summary.ConversationID), userKey(user)},
		summary.OtherUserEmail.String(),
		summary.Name,
		protocol.FormatDate(summary.LatestMessage.Date),
		summary.LatestMessage.Message,
		boolField(summary.LatestMessage.IsRead),
		summary.LatestMessage.Position,
		strconv.FormatFloat(score(summary.LatestMessage), 'f', -1, 64),
		summary.ConversationID,
	).Int()
	if err != nil {
		return false, unavailable("insert", err)
	}
	return n == 1, nil
}

// ListSummaries 列出摘要
func (r *RedisIndex) ListSummaries(ctx context.Context, user identity.StorageKey) ([]model.ConversationSummary, error) {
	ids, err := r.client.ZRevRange(ctx, userKey(user), 0, -1).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}
	if len(ids) == 0 {
		return []model.ConversationSummary{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, summaryKey(user, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable("list", err)
	}

	out := make([]model.ConversationSummary, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		summary, err := decodeSummary(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	model.SortByLatest(out)
	return out, nil
}

func decodeSummary(conversationID string, fields map[string]string) (model.ConversationSummary, error) {
	date, err := protocol.ParseDate(fields[fieldDate])
	if err != nil {
		return model.ConversationSummary{}, fmt.Errorf("摘要 %s 数据损坏: %w", conversationID, err)
	}
	isRead, _ := strconv.ParseBool(fields[fieldIsRead])
	// 缺少序号的旧记录按 0 处理
	position, _ := strconv.ParseInt(fields[fieldPosition], 10, 64)
	return model.ConversationSummary{
		ConversationID: conversationID,
		OtherUserEmail: identity.StorageKey(fields[fieldOtherUser]),
		Name:           fields[fieldName],
		LatestMessage: model.LatestMessage{
			Date:     date,
			Message:  fields[fieldMessage],
			IsRead:   isRead,
			Position: position,
		},
	}, nil
}

// ApplyLatestMessage 更新最新消息字段。旧序号的更新不生效，但只要摘要存在就返回 true
func (r *RedisIndex) ApplyLatestMessage(ctx context.Context, user identity.StorageKey, conversationID string, latest model.LatestMessage) (bool, error) {
	n, err := applyLatestScript.Run(ctx, r.client,
		[]string{summaryKey(user, conversationID), userKey(user)},
		protocol.FormatDate(latest.Date),
		latest.Message,
		boolField(latest.IsRead),
		strconv.FormatFloat(score(latest), 'f', -1, 64),
		conversationID,
		latest.Position,
	).Int()
	if err != nil {
		return false, unavailable("apply latest", err)
	}
	return n == 1, nil
}

// MarkRead 标记已读
func (r *RedisIndex) MarkRead(ctx context.Context, user identity.StorageKey, conversationID string) (bool, error) {
	n, err := markReadScript.Run(ctx, r.client, []string{summaryKey(user, conversationID)}).Int()
	if err != nil {
		return false, unavailable("mark read", err)
	}
	return n == 1, nil
}
