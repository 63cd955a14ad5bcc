package shared

import "testing"

func TestGenerateState(t *testing.T) {
	t.Run("produces URL-safe tokens of fixed length", func(t *testing.T) {
		state, err := GenerateState()
		if err != nil {
			t.Fatalf("failed to generate state: %v", err)
		}

		if len(state) != 32 {
			t.Errorf("expected 32 character state token, got %d", len(state))
		}

		for _, r := range state {
			ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
			if !ok {
				t.Errorf("state token contains non URL-safe character %q", r)
			}
		}
	})

	t.Run("produces unique tokens", func(t *testing.T) {
		seen := map[string]bool{}
		for range 100 {
			state, err := GenerateState()
			if err != nil {
				t.Fatalf("failed to generate state: %v", err)
			}
			if seen[state] {
				t.Fatalf("duplicate state token generated: %s", state)
			}
			seen[state] = true
		}
	})
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if len(id) != 36 {
		t.Errorf("expected uuid string of length 36, got %d", len(id))
	}

	if id == GenerateID() {
		t.Error("expected distinct ids on successive calls")
	}
}
