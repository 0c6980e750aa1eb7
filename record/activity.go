package record

import (
	"encoding/base32"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Activity is an immutable account of one pipeline run: which agent ran,
// with what options, addressable by URI. Outputs generated during the run
// point back to it via their provenance statement.
type Activity struct {
	URI       string    `json:"uri"`
	Agent     string    `json:"agent"`
	Opts      string    `json:"opts,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Ended reports whether the run has been closed.
func (a *Activity) Ended() bool { return !a.EndedAt.IsZero() }

// NewActivity starts a new activity for an agent under a container URI.
// Activity ids are random; two runs of the same agent are distinct
// activities even over identical inputs.
func NewActivity(container, agent, opts string) Activity {
	b, _ := uuid.New().MarshalBinary()
	id := strings.ToLower(base32.StdEncoding.EncodeToString(b))[:26]
	return Activity{
		URI:       container + "/" + id,
		Agent:     agent,
		Opts:      opts,
		StartedAt: time.Now().UTC(),
	}
}
