package judgement

import (
	"testing"

	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

func TestHit_ByAI(t *testing.T) {
	if !(&Hit{Author: AIAuthor("gpt-4o")}).ByAI() {
		t.Error("ai author not detected")
	}
	if (&Hit{Author: "alice"}).ByAI() {
		t.Error("human author flagged as ai")
	}
}

func TestNew_CopiesKey(t *testing.T) {
	key := rating.Key{Project: "p", Scenario: "s", Index: "logs-1", DocID: "d"}

	j := New(key, 3, AIAuthor("m"))
	want := Judgement{ScenarioID: "s", Index: "logs-1", DocID: "d", Rating: 3, Author: "ai:m"}
	if j != want {
		t.Errorf("New() = %+v, want %+v", j, want)
	}
}
