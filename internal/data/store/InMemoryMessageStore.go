package store

import (
	"context"
	"sync"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

type InMemoryMessageStore struct {
	chatLock sync.RWMutex
	chatMap  map[string][]ragModel.ChatMessage
}

func InitMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{
		chatMap: make(map[string][]ragModel.ChatMessage),
	}
}

func (store *InMemoryMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	_, ok := store.chatMap[chatId]
	return ok
}

func (store *InMemoryMessageStore) InitNewChat(ctx context.Context, id string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = make([]ragModel.ChatMessage, 0)
	return nil
}

func (store *InMemoryMessageStore) AppendMessages(ctx context.Context, id string, messages ...ragModel.ChatMessage) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	history, ok := store.chatMap[id]
	if !ok {
		return errInvalidChatId
	}
	for _, m := range messages {
		if m.Role != ragModel.RoleSystem {
			history = append(history, m)
		}
	}
	store.chatMap[id] = history
	return nil
}

func (store *InMemoryMessageStore) GetMessageHistory(ctx context.Context, chatId string) ([]ragModel.ChatMessage, error) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	history := store.chatMap[chatId]
	if len(history) > config.ChatHistoryWindow {
		history = history[len(history)-config.ChatHistoryWindow:]
	}
	return ragModel.CopyHistory(history, 0), nil
}
