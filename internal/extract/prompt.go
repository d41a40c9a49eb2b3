package extract

import (
	"fmt"
	"strings"

	"github.com/voicecal/voicecal-go/internal/pipeline"
)

// systemPrompt instructs the model with explicit time-resolution rules
// so its output is deterministic given the same transcript and
// reference instant.
const systemPrompt = `You are a calendar event extraction engine. The user message contains a
reference instant, an optional label list, and a voice transcript. Extract
exactly one calendar event and return ONLY a JSON object with these keys:

title         (string, required, short event title)
start         (string, required, "YYYY-MM-DDTHH:MM:SS", local time)
end           (string, "YYYY-MM-DDTHH:MM:SS", local time)
location      (string or null)
description   (string or null)
all_day       (boolean)
participants  (array of strings, may be empty)
label_id      (string or null)

Time resolution rules, applied relative to the reference instant's
calendar date:
- "today"/今天 is the reference date; "tomorrow"/明天 is the next date;
  "day after tomorrow"/後天 is two dates ahead; "next <weekday>"/下週X is
  the named weekday of the following week.
- Day-part words without explicit minutes map to canonical hours:
  morning/早上 09:00, afternoon/下午 14:00, evening/晚上 19:00,
  night/深夜 21:00.
- If only a start time is stated, set end to start plus one hour.
- If the transcript indicates an all-day event (全天, 整天, 休假 or
  equivalents), set all_day true, start to 00:00:00 of that date and end
  to 00:00:00 of the following date.
- label_id must be one of the ids in the label list, chosen by best
  semantic match, or null if none fits. Never invent a label id.

Return the JSON object only, no commentary.`

// buildPrompt renders the user message for one extraction call.
func buildPrompt(in pipeline.Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Reference instant: %s (%s)\n",
		in.Now.Format("2006-01-02T15:04:05"), in.Now.Weekday())

	if len(in.Labels) > 0 {
		b.WriteString("Labels:\n")
		for _, l := range in.Labels {
			fmt.Fprintf(&b, "- %s: %s\n", l.ID, l.Name)
		}
	} else {
		b.WriteString("Labels: none\n")
	}

	fmt.Fprintf(&b, "\nTranscript:\n\"\"\"%s\"\"\"\n", in.Transcript)
	return b.String()
}
