// Package chatbus implements the group-chat coordination bus: a
// Redis-backed, per-room append-only log that lets sibling agents (a
// root agent and its clones) exchange short status updates without
// sharing any other mutable state.
package chatbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaxRoomMessages bounds how much history a single room retains; the
// oldest entries are trimmed as new ones arrive.
const MaxRoomMessages = 200

// Message is one entry in a room's history.
type Message struct {
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Config configures the Redis connection backing the bus. Every field
// can be set from the environment via ConfigFromEnv, matching the
// teacher's env-first convention for external dependencies.
type Config struct {
	Host        string
	Port        int
	DB          int
	Password    string
	KeyPrefix   string
	DefaultRoom string
	MaxMessages int
	Logger      *slog.Logger
}

// ConfigFromEnv reads KAGEBUNSHIN_CHAT_{HOST,PORT,DB,PASSWORD,PREFIX,ROOM,MAX_MESSAGES}.
func ConfigFromEnv() Config {
	cfg := Config{
		Host:        envOr("KAGEBUNSHIN_CHAT_HOST", "localhost"),
		Port:        envInt("KAGEBUNSHIN_CHAT_PORT", 6379),
		DB:          envInt("KAGEBUNSHIN_CHAT_DB", 0),
		Password:    os.Getenv("KAGEBUNSHIN_CHAT_PASSWORD"),
		KeyPrefix:   envOr("KAGEBUNSHIN_CHAT_PREFIX", "kagebunshin:chat"),
		DefaultRoom: envOr("KAGEBUNSHIN_CHAT_ROOM", "lobby"),
		MaxMessages: envInt("KAGEBUNSHIN_CHAT_MAX_MESSAGES", MaxRoomMessages),
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bus is a Redis-backed group-chat log, one ordered list per room.
type Bus struct {
	client      *redis.Client
	keyPrefix   string
	maxMessages int
	logger      *slog.Logger
}

// New connects to Redis and returns a Bus. A ping failure is returned,
// not panicked: a caller that decides the chat bus is optional can
// degrade to a no-op rather than fail startup.
func New(ctx context.Context, cfg Config) (*Bus, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = MaxRoomMessages
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("chatbus: connect: %w", err)
	}
	return &Bus{
		client:      client,
		keyPrefix:   cfg.KeyPrefix,
		maxMessages: cfg.MaxMessages,
		logger:      cfg.Logger,
	}, nil
}

func (b *Bus) key(room string) string {
	return b.keyPrefix + ":" + room
}

// Post appends a message to room's history and trims it to the
// configured maximum, holding per-room total order (P5/P6).
func (b *Bus) Post(ctx context.Context, room, sender, text string) error {
	msg := Message{Room: room, Sender: sender, Text: text, Timestamp: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chatbus: encode message: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, b.key(room), data)
	pipe.LTrim(ctx, b.key(room), int64(-b.maxMessages), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Warn("chatbus: post failed, continuing without group chat", "room", room, "error", err)
		return err
	}
	return nil
}

// History returns up to limit of the most recent messages in room, in
// chronological order. A limit of 0 or negative returns all retained
// messages (bounded by MaxRoomMessages).
func (b *Bus) History(ctx context.Context, room string, limit int) ([]Message, error) {
	raw, err := b.client.LRange(ctx, b.key(room), 0, -1).Result()
	if err != nil {
		b.logger.Warn("chatbus: history unavailable, degrading to empty", "room", room, "error", err)
		return nil, nil
	}

	msgs := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Format renders a slice of Messages into a single block suitable for
// inclusion in an LLM prompt.
func Format(msgs []Message) string {
	if len(msgs) == 0 {
		return "(no messages yet)"
	}
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Sender, m.Text)
	}
	return sb.String()
}

// Close releases the underlying Redis connection.
func (b *Bus) Close() error {
	return b.client.Close()
}
