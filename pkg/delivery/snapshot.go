package delivery

import "github.com/rexliu/popd/pkg/core"

// Expander renders content macros before a popup reaches the page.
type Expander interface {
	Expand(content string) string
}

// ExpanderFunc adapts a function to Expander.
type ExpanderFunc func(string) string

func (f ExpanderFunc) Expand(content string) string { return f(content) }

// NoopExpander leaves content untouched.
var NoopExpander Expander = ExpanderFunc(func(s string) string { return s })

// Snapshot is handed once per page view to the client-side runtime.
type Snapshot struct {
	Popups             core.Collection `json:"popups"`
	PageID             int             `json:"pageId"`
	ViewerIsPrivileged bool            `json:"viewerIsPrivileged"`
}

// BuildSnapshot copies popups with expanded content. The input collection is
// not modified.
func BuildSnapshot(popups core.Collection, page core.PageContext, expander Expander) Snapshot {
	if expander == nil {
		expander = NoopExpander
	}
	out := popups.Clone()
	for i := range out {
		out[i].Content = expander.Expand(out[i].Content)
	}
	return Snapshot{
		Popups:             out,
		PageID:             page.PageID,
		ViewerIsPrivileged: page.ViewerIsPrivileged,
	}
}
