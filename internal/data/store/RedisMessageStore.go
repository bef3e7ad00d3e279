package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/data/redisStore"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

var errInvalidChatId = errors.New("invalid chat id")

type RedisMessageStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisMessageStore(s *redisStore.Store) *RedisMessageStore {
	return &RedisMessageStore{
		store:  s,
		logger: logger_i.NewLogger("MessageStore"),
	}
}

func chatOpenKey(id string) string    { return "chat:" + id + ":open" }
func chatHistoryKey(id string) string { return "chat:" + id + ":messages" }

func (s *RedisMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	found, err := s.store.Exists(ctx, chatOpenKey(chatId))
	if err != nil {
		s.logger.FromContext(ctx).Error("Failed to check if chatId exists", "chatId", chatId, "error", err)
		return false
	}
	return found
}

func (s *RedisMessageStore) InitNewChat(ctx context.Context, id string) error {
	log := s.logger.FromContext(ctx).With("chatId", id)
	log.Debug("Initializing new chat")
	if _, err := s.store.Del(ctx, chatHistoryKey(id)); err != nil {
		log.Error("Error clearing chat", "error", err)
		return err
	}
	return s.store.Set(ctx, chatOpenKey(id), time.Now().UTC().Format(time.RFC3339), config.RedisMessageStoreTTL)
}

func (s *RedisMessageStore) AppendMessages(ctx context.Context, id string, messages ...ragModel.ChatMessage) error {
	log := s.logger.FromContext(ctx).With("chatId", id)
	if !s.ValidateChatId(ctx, id) {
		log.Error("Failed validation before saving", "error", errInvalidChatId)
		return errInvalidChatId
	}

	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		if m.Role == ragModel.RoleSystem {
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	if err := s.store.ListPush(ctx, chatHistoryKey(id), config.RedisMessageStoreTTL, values...); err != nil {
		log.Error("error saving chat", "error", err)
		return err
	}
	log.Debug("Saved chat successfully", "messages", len(values))
	return nil
}

func (s *RedisMessageStore) GetMessageHistory(ctx context.Context, chatId string) ([]ragModel.ChatMessage, error) {
	res, err := s.store.ListGetLast(ctx, chatHistoryKey(chatId), config.ChatHistoryWindow)
	if err != nil {
		s.logger.FromContext(ctx).Error("Error getting history", "chatId", chatId, "error", err)
		return nil, err
	}
	history := make([]ragModel.ChatMessage, 0, len(res))
	for _, raw := range res {
		var m ragModel.ChatMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	return history, nil
}
