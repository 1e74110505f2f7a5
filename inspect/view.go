package inspect

import (
	"github.com/vitalvas/waypoint/history"
	"github.com/vitalvas/waypoint/route"
)

// MatchView is the JSON form of a route.Match. Settled loader results are
// included when the match has a loader.
type MatchView struct {
	Route       string       `json:"route,omitempty"`
	NotFound    bool         `json:"notFound,omitempty"`
	Segment     string       `json:"segment"`
	Accumulated string       `json:"accumulated"`
	Params      route.Params `json:"params"`
	Index       int          `json:"index"`
	Loader      string       `json:"loader,omitempty"`
	Pending     bool         `json:"pending,omitempty"`
	Data        any          `json:"data,omitempty"`
	Error       string       `json:"error,omitempty"`
	Children    []MatchView  `json:"children,omitempty"`
}

// StateView is the JSON form of a history.State.
type StateView struct {
	Action    history.Action    `json:"action"`
	Location  history.Location  `json:"location"`
	Path      string            `json:"path"`
	Matches   []MatchView       `json:"matches"`
	IsLoading bool              `json:"isLoading"`
	Pending   *history.Location `json:"pending,omitempty"`
}

func (i *Inspector) stateView(s history.State) StateView {
	return StateView{
		Action:    s.Action,
		Location:  s.Location,
		Path:      s.Location.Path(),
		Matches:   i.matchViews(s.Matches),
		IsLoading: s.IsLoading,
		Pending:   s.Pending,
	}
}

func (i *Inspector) matchViews(matches []route.Match) []MatchView {
	out := make([]MatchView, len(matches))
	for n, m := range matches {
		v := MatchView{
			Route:       m.RouteName(),
			NotFound:    route.IsNotFound(m),
			Segment:     m.Segment,
			Accumulated: m.Accumulated,
			Params:      m.Params,
			Index:       m.Index,
		}

		if m.Config != nil && m.Config.Loader != nil {
			v.Loader = m.Config.Loader.Name()

			data, err, ok := i.ctrl.Data(m)
			switch {
			case !ok:
				v.Pending = true
			case err != nil:
				v.Error = err.Error()
			default:
				v.Data = data
			}
		}

		if len(m.Children) > 0 {
			v.Children = i.matchViews(m.Children)
		}

		out[n] = v
	}
	return out
}
