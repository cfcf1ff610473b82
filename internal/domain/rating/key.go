package rating

import (
	"github.com/kailas-cloud/esre-console/internal/domain"
)

// Key scopes a rating to one document within one scenario.
type Key struct {
	Project  string
	Scenario string
	Index    string
	DocID    string
}

// Validate checks that every scope component is present.
func (k Key) Validate() error {
	switch {
	case k.Project == "":
		return domain.Validationf("project id is required")
	case k.Scenario == "":
		return domain.Validationf("scenario id is required")
	case k.Index == "":
		return domain.Validationf("document index is required")
	case k.DocID == "":
		return domain.Validationf("document id is required")
	}
	return nil
}

func (k Key) String() string {
	return k.Project + "/" + k.Scenario + "/" + k.Index + "/" + k.DocID
}
