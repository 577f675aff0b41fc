package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	bolt "go.etcd.io/bbolt"

	"github.com/lumenlabs/agentchat/internal/models"
)

// BoltDB is the client's local cache of conversations and their message histories, backed by
// a BoltDB file. It lets a reopened conversation render immediately from the last known
// history while the fresh fetch from the backend is still in flight. History is always
// replaced wholesale, never merged, so the cache mirrors whatever the backend last returned.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates, with 0600 permissions) the cache file at the given path and
// initializes the required buckets.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("conversations"))
		return err
	})

	return BoltDB{db: db}, err
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func historyBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("history-%s", conversationID))
}

// Conversations returns all cached conversations in reverse id order.
func (b BoltDB) Conversations(context.Context) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte("conversations"))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(_, v []byte) error {
			var conversation models.Conversation
			if err := json.Unmarshal(v, &conversation); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			conversations = append(conversations, conversation)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(conversations)
	return conversations, nil
}

// SaveConversation inserts or updates a cached conversation record.
func (b BoltDB) SaveConversation(_ context.Context, conversation models.Conversation) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte("conversations"))
		if bkt == nil {
			return nil
		}

		v, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return bkt.Put([]byte(conversation.ID), v)
	})
}

// History returns the cached message history of a conversation in stored order. A conversation
// that was never cached yields an empty history.
func (b BoltDB) History(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(historyBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ReplaceHistory drops the cached history of a conversation and stores the given messages in
// order. Sequence numbers key the entries so iteration preserves insertion order.
func (b BoltDB) ReplaceHistory(_ context.Context, conversationID string, messages []models.Message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		name := historyBucketName(conversationID)
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to reset history bucket: %w", err)
			}
		}
		bkt, err := tx.CreateBucket(name)
		if err != nil {
			return fmt.Errorf("failed to create history bucket: %w", err)
		}

		for _, message := range messages {
			seq, err := bkt.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to get next sequence: %w", err)
			}

			v, err := json.Marshal(message)
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}

			if err := bkt.Put([]byte(fmt.Sprintf("%020d", seq)), v); err != nil {
				return err
			}
		}
		return nil
	})
}
