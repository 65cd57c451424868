package core

// DisplayFrequency names the repeat-display policy of a popup.
type DisplayFrequency string

const (
	FrequencySession DisplayFrequency = "session"
	FrequencyAlways  DisplayFrequency = "always"
)

// Defaults applied by the sanitizer when a field is absent or malformed.
const (
	DefaultDisplayFrequency      = FrequencySession
	DefaultOpeningDelay          = 5
	DefaultButtonBackgroundColor = "#6f47e5"
	DefaultButtonTextColor       = "#FFFFFF"
	DefaultBackdropColor         = "#000000"
	DefaultBackdropOpacity       = 70.0
	DefaultMaxWidth              = 600
)

// Popup is a single configured overlay.
type Popup struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	Content               string           `json:"content"`
	DisplayFrequency      DisplayFrequency `json:"displayFrequency"`
	OpeningDelay          int              `json:"openingDelay"`
	ButtonEnabled         bool             `json:"buttonEnabled"`
	ButtonLabel           string           `json:"buttonLabel"`
	ButtonURL             string           `json:"buttonURL"`
	ButtonBackgroundColor string           `json:"buttonBackgroundColor"`
	ButtonTextColor       string           `json:"buttonTextColor"`
	BackdropColor         string           `json:"backdropColor"`
	BackdropOpacity       float64          `json:"backdropOpacity"`
	MaxWidth              int              `json:"maxWidth"`
	RoundedCornersEnabled bool             `json:"roundedCornersEnabled"`
	ShowOnAllPages        bool             `json:"showOnAllPages"`
	ShowOnThesePages      []int            `json:"showOnThesePages"`
	TestModeEnabled       bool             `json:"testModeEnabled"`
	Deactivated           bool             `json:"deactivated"`
}

// TargetsPage reports whether the popup's page targeting admits pageID.
func (p Popup) TargetsPage(pageID int) bool {
	if p.ShowOnAllPages {
		return true
	}
	for _, id := range p.ShowOnThesePages {
		if id == pageID {
			return true
		}
	}
	return false
}

// Collection is the ordered set of popups, in creation order.
type Collection []Popup

// Index returns the position of the popup with id, or -1.
func (c Collection) Index(id string) int {
	for i, p := range c {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to mutate.
func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}
	out := make(Collection, len(c))
	for i, p := range c {
		if p.ShowOnThesePages != nil {
			p.ShowOnThesePages = append(make([]int, 0, len(p.ShowOnThesePages)), p.ShowOnThesePages...)
		}
		out[i] = p
	}
	return out
}

// PageContext describes a single page view.
type PageContext struct {
	PageID             int  `json:"pageId"`
	ViewerIsPrivileged bool `json:"viewerIsPrivileged"`
}
