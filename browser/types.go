package browser

// ViewportPosition classifies an Element's position relative to the
// current viewport.
type ViewportPosition string

const (
	PositionIn    ViewportPosition = "in"
	PositionAbove ViewportPosition = "above"
	PositionBelow ViewportPosition = "below"
	PositionLeft  ViewportPosition = "left"
	PositionRight ViewportPosition = "right"
)

// BoundingBox is a page-relative rectangle in CSS pixels.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Hierarchy describes an Element's position in the DOM tree, used to
// give the model structural signal beyond flat text.
type Hierarchy struct {
	Depth               int    `json:"depth"`
	SiblingIndex        int    `json:"siblingIndex"`
	SiblingTotal        int    `json:"siblingTotal"`
	Children            int    `json:"children"`
	InteractiveChildren int    `json:"interactiveChildren"`
	Role                string `json:"role"`
}

// Element is one entry of an Observation's indexed, clickable surface.
// Index and Selector are only valid for the Observation that produced
// them; a navigation or re-annotation invalidates both.
type Element struct {
	Index           int              `json:"index"`
	Kind            string           `json:"kind"`
	Text            string           `json:"text"`
	AriaLabel       string           `json:"ariaLabel"`
	Selector        string           `json:"selector"`
	BoundingBox     BoundingBox      `json:"boundingBox"`
	ViewportPosition ViewportPosition `json:"viewportPosition"`
	FrameContext    string           `json:"frameContext"`
	IsCaptcha       bool             `json:"isCaptcha"`
	Hierarchy       *Hierarchy       `json:"hierarchy,omitempty"`
}

// Tab describes one page in a Session's page set.
type Tab struct {
	Index    int
	Title    string
	URL      string
	IsActive bool
}

// ViewportStats summarizes Element distribution for the prompt-building
// stage, so the model knows roughly how much is off-screen.
type ViewportStats struct {
	In, Above, Below, Left, Right int
	FrameCount                    int
}

// Observation is the structured view of a live page the loop reasons
// over. Built fresh every turn; never cached across turns.
type Observation struct {
	Screenshot    []byte
	Elements      []Element
	Markdown      string
	Tabs          []Tab
	ViewportStats ViewportStats
	IsPDF         bool
	Degraded      bool
	DegradedNote  string
}

// ActiveTab returns the Tab marked active, or the zero value if none is.
func (o *Observation) ActiveTab() (Tab, bool) {
	for _, t := range o.Tabs {
		if t.IsActive {
			return t, true
		}
	}
	return Tab{}, false
}
