package utils

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"devtracker-bot/config"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// maxFieldValue is the Discord limit for an embed field value.
const maxFieldValue = 1024

// NewLogger builds the process logger: text to stdout and, when a file is
// configured, to a rotating log file as well.
func NewLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	logger.SetOutput(out)
	return logger, nil
}

// EmbedSender posts an embed to a channel. *discordgo.Session implements it.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// AdminChannelHook mirrors warnings and errors to the admin channel as embeds.
// Entries are posted from a background goroutine; when the queue is full
// they are dropped.
type AdminChannelHook struct {
	sender    EmbedSender
	channelID string
	queue     chan *discordgo.MessageEmbed
	done      chan struct{}

	mu     sync.Mutex // guards queue sends against Close
	closed bool
}

func NewAdminChannelHook(sender EmbedSender, channelID string) *AdminChannelHook {
	h := &AdminChannelHook{
		sender:    sender,
		channelID: channelID,
		queue:     make(chan *discordgo.MessageEmbed, 64),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *AdminChannelHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.WarnLevel, logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
}

// Fire queues entry for the admin channel. Entries fired after Close are
// ignored.
func (h *AdminChannelHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	select {
	case h.queue <- logEmbed(entry):
	default:
		fmt.Fprintf(os.Stderr, "admin channel log queue full, dropping: %s\n", entry.Message)
	}
	return nil
}

// Close stops accepting entries and waits until the queued ones are sent.
func (h *AdminChannelHook) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()
	<-h.done
}

func (h *AdminChannelHook) run() {
	defer close(h.done)
	for embed := range h.queue {
		// Never log through logrus here, the hook would fire again.
		if _, err := h.sender.ChannelMessageSendEmbed(h.channelID, embed); err != nil {
			fmt.Fprintf(os.Stderr, "Error sending log message to Discord: %v\n", err)
		}
	}
}

func logEmbed(entry *logrus.Entry) *discordgo.MessageEmbed {
	color := ColorWarn
	if entry.Level <= logrus.ErrorLevel {
		color = ColorError
	}

	module, _ := entry.Data["module"].(string)
	if module == "" {
		module = "bot"
	}

	var details []string
	for key, value := range entry.Data {
		if key == "module" {
			continue
		}
		details = append(details, fmt.Sprintf("%s=%v", key, value))
	}
	sort.Strings(details)

	fields := []*discordgo.MessageEmbedField{
		{Name: "Module", Value: module, Inline: true},
		{Name: "Level", Value: strings.ToUpper(entry.Level.String()), Inline: true},
		{Name: "Message", Value: clip(entry.Message)},
	}
	if len(details) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: clip(strings.Join(details, "\n"))})
	}

	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", strings.ToUpper(entry.Level.String())),
		Color:     color,
		Timestamp: ts.Format(time.RFC3339),
		Fields:    fields,
	}
}

func clip(s string) string {
	if s == "" {
		return "-"
	}
	r := []rune(s)
	if len(r) <= maxFieldValue {
		return s
	}
	return string(r[:maxFieldValue-3]) + "..."
}
