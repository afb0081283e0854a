// Package notify sends best-effort sync notifications. Failures are logged
// and swallowed; a notification never affects the ingestion result.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/healthsync/internal/model"
)

// Notifier delivers a human-readable summary of one accepted sync.
type Notifier interface {
	Notify(ctx context.Context, rec *model.CanonicalRecord)
}

// Noop drops every notification. Used when no chat is configured.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, *model.CanonicalRecord) {}

const sendTimeout = 5 * time.Second

// Telegram posts sync summaries to a Telegram chat.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
	log     *zap.Logger
}

// NewTelegram constructs a Telegram notifier for the given bot token and chat.
func NewTelegram(token, chatID string, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{
		client:  &http.Client{Timeout: sendTimeout},
		baseURL: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		log:     log,
	}
}

// Notify sends the summary. Every failure path logs and returns; nothing
// propagates to the caller.
func (t *Telegram) Notify(ctx context.Context, rec *model.CanonicalRecord) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       Summary(rec),
		"parse_mode": "HTML",
	})
	if err != nil {
		t.log.Error("telegram: encode message", zap.Error(err))
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.log.Error("telegram: build request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Error("telegram: send", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.log.Error("telegram: unexpected status", zap.Int("status", resp.StatusCode))
		return
	}
	t.log.Info("telegram notification sent",
		zap.String("kind", string(rec.Kind)),
		zap.String("device_id", rec.DeviceID),
	)
}

// Summary extracts headline stats from a payload: step totals, workout count
// and calories. It understands both the raw Health Connect export arrays and
// the older structured summary fields.
func Summary(rec *model.CanonicalRecord) string {
	title := strings.ToUpper(string(rec.Kind)[:1]) + string(rec.Kind)[1:]
	lines := []string{
		fmt.Sprintf("✅ %s Sync (v%d)", title, rec.SchemaVersion),
		"📅 " + rec.Date.Format(time.DateOnly),
	}

	if steps, ok := stepsTotal(rec.Payload); ok {
		lines = append(lines, "🚶 "+groupThousands(steps)+" steps")
	}
	if n := workoutCount(rec.Payload); n > 0 {
		lines = append(lines, fmt.Sprintf("💪 %d workout(s)", n))
	}
	if cal, ok := caloriesTotal(rec.Payload); ok {
		lines = append(lines, fmt.Sprintf("🍽️ %.0f cal", cal))
	}
	return strings.Join(lines, "\n")
}

func stepsTotal(doc model.Document) (int64, bool) {
	if recs, ok := doc["StepsRecord"].([]any); ok && len(recs) > 0 {
		var total int64
		for _, r := range recs {
			if m, ok := r.(map[string]any); ok {
				if v, ok := m["count"].(float64); ok {
					total += int64(v)
				}
			}
		}
		return total, true
	}
	if v, ok := doc["steps_total"].(float64); ok {
		return int64(v), true
	}
	return 0, false
}

func workoutCount(doc model.Document) int {
	if recs, ok := doc["ExerciseSessionRecord"].([]any); ok {
		return len(recs)
	}
	if recs, ok := doc["exercise_sessions"].([]any); ok {
		return len(recs)
	}
	return 0
}

func caloriesTotal(doc model.Document) (float64, bool) {
	if recs, ok := doc["NutritionRecord"].([]any); ok && len(recs) > 0 {
		var total float64
		for _, r := range recs {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			energy, ok := m["energy"].(map[string]any)
			if !ok {
				continue
			}
			if v, ok := energy["value"].(float64); ok {
				total += v / 1000 // exporter reports milli-calories
			}
		}
		return total, true
	}
	if ns, ok := doc["nutrition_summary"].(map[string]any); ok {
		if v, ok := ns["calories_total"].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
