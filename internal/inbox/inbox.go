// Package inbox shapes stored threads and messages into the conversation list
// served to readers and to the admin panel.
package inbox

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PratikDhanave/portfolio-inbox/internal/models"
	"github.com/PratikDhanave/portfolio-inbox/internal/store"
)

// TimeGap is the silence after which a message gets a visible timestamp.
const TimeGap = time.Hour

// Assemble groups msgs under their threads, keeping the order of both inputs.
// Messages whose thread is not in threads are dropped.
func Assemble(threads []store.Thread, msgs []store.Message) []models.Conversation {
	grouped := make(map[string][]models.Message, len(threads))
	for _, m := range msgs {
		grouped[m.ThreadID] = append(grouped[m.ThreadID], ToMessage(m))
	}

	out := make([]models.Conversation, 0, len(threads))
	for _, t := range threads {
		c := ToConversation(t)
		if ms, ok := grouped[t.ID]; ok {
			c.Messages = ms
		}
		out = append(out, c)
	}
	return out
}

// ToConversation converts a thread with no messages attached.
func ToConversation(t store.Thread) models.Conversation {
	return models.Conversation{
		ID:       t.ID,
		Title:    strings.ToLower(t.Title),
		Preview:  strings.ToLower(t.Preview),
		Pinned:   t.Pinned,
		Icon:     t.Icon,
		Index:    t.Index,
		Messages: []models.Message{},
	}
}

func ToMessage(m store.Message) models.Message {
	return models.Message{
		ID:             m.ID,
		Text:           m.Text,
		AttachmentURL:  m.AttachmentURL,
		AttachmentType: m.AttachmentType,
		Time:           m.CreatedAt,
	}
}

func lastTime(c models.Conversation) time.Time {
	if n := len(c.Messages); n > 0 {
		return c.Messages[n-1].Time
	}
	return time.Unix(0, 0)
}

// SortConversations orders pinned conversations first, alphabetically by
// title, then the rest by most recent message. Conversations without messages
// sort as if their last message were at the Unix epoch. The sort is stable.
func SortConversations(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i], convs[j]
		switch {
		case a.Pinned && b.Pinned:
			return a.Title < b.Title
		case a.Pinned != b.Pinned:
			return a.Pinned
		default:
			return lastTime(a).After(lastTime(b))
		}
	})
}

// AnnotateMessages marks the message before every gap longer than TimeGap, and
// the last message, as showing its time.
func AnnotateMessages(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		out[i].ShowTime = false
	}
	for i := 1; i < len(out); i++ {
		if out[i].Time.Sub(out[i-1].Time) > TimeGap {
			out[i-1].ShowTime = true
		}
	}
	if n := len(out); n > 0 {
		out[n-1].ShowTime = true
	}
	return out
}

// FormatAgo renders the age of t relative to now: "just now", then minutes,
// hours, days and finally weeks.
func FormatAgo(t, now time.Time) string {
	mins := int(now.Sub(t) / time.Minute)
	if mins < 1 {
		return "just now"
	}
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	hours := mins / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dw", days/7)
}

// PublicView sorts convs, annotates their messages and stamps LastActive.
func PublicView(convs []models.Conversation, now time.Time) []models.Conversation {
	out := make([]models.Conversation, len(convs))
	copy(out, convs)
	SortConversations(out)
	for i := range out {
		out[i].Messages = AnnotateMessages(out[i].Messages)
		if n := len(out[i].Messages); n > 0 {
			out[i].LastActive = FormatAgo(out[i].Messages[n-1].Time, now)
		}
	}
	return out
}
