package hermes

import (
	"encoding/json"
	"testing"
)

func TestMessageStoredEventParsing(t *testing.T) {
	raw := `{
		"channel": "C042ENG",
		"thread_ts": "1700000000.000100",
		"ts": "1700000042.000200",
		"user": "U_ALICE",
		"text": "shipping it",
		"reactions": [{"name": "rocket", "users": ["U_BOB", "U_CAROL"]}]
	}`

	var evt MessageStoredEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse MessageStoredEvent: %v", err)
	}

	if evt.Channel != "C042ENG" {
		t.Errorf("expected channel 'C042ENG', got '%s'", evt.Channel)
	}
	if evt.Thread != "1700000000.000100" {
		t.Errorf("expected thread_ts '1700000000.000100', got '%s'", evt.Thread)
	}
	if evt.User != "U_ALICE" {
		t.Errorf("expected user 'U_ALICE', got '%s'", evt.User)
	}
	if len(evt.Reactions) != 1 || len(evt.Reactions[0].Users) != 2 {
		t.Errorf("reactions parsed wrong: %+v", evt.Reactions)
	}
}

func TestCandidateExampleRoundTrip(t *testing.T) {
	candidate := CandidateExample{
		EntityKey:    "C042ENG#1700000000.000100",
		Prompt:       "start -> U_ALICE --> shipping it \n\n###\n\n",
		EngagedUsers: []string{"U_BOB", "U_CAROL"},
	}

	data, err := json.Marshal(candidate)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var parsed CandidateExample
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if parsed.EntityKey != candidate.EntityKey || parsed.Prompt != candidate.Prompt {
		t.Errorf("round-trip mismatch: got %+v, want %+v", parsed, candidate)
	}
	if len(parsed.EngagedUsers) != 2 {
		t.Errorf("engaged users round-trip: %v", parsed.EngagedUsers)
	}
}

func TestSubjectConstants(t *testing.T) {
	if SubjectMessageStored != "swarm.chronicle.message.stored" {
		t.Errorf("SubjectMessageStored = %q", SubjectMessageStored)
	}
	if SubjectExample != "swarm.pythia.example" {
		t.Errorf("SubjectExample = %q", SubjectExample)
	}
}
