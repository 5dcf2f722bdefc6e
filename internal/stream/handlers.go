package stream

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/maptile"
	"github.com/signalsfoundry/airspace-playback/internal/session"
	"github.com/signalsfoundry/airspace-playback/model"
)

type flightEventJSON struct {
	Kind        string              `json:"kind"`
	Title       string              `json:"title"`
	Severity    string              `json:"severity"`
	Tick        int                 `json:"tick"`
	Time        string              `json:"time"`
	Location    *model.Coordinate3D `json:"location,omitempty"`
	Explanation string              `json:"explanation,omitempty"`
	LineDashed  bool                `json:"line_dashed"`
}

func newFlightEventJSON(e core.FlightEvent) flightEventJSON {
	return flightEventJSON{
		Kind:        e.Kind.String(),
		Title:       e.Title(),
		Severity:    e.Kind.Severity(),
		Tick:        e.Tick,
		Time:        e.Time(),
		Location:    e.Location,
		Explanation: e.Explanation,
		LineDashed:  e.LineDashed,
	}
}

type timelineEventJSON struct {
	AgentID string `json:"agent_id"`
	flightEventJSON
}

type agentJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Owner     string   `json:"owner"`
	Kind      string   `json:"kind"`
	Color     string   `json:"color,omitempty"`
	FirstTick *int     `json:"first_tick,omitempty"`
	LastTick  *int     `json:"last_tick,omitempty"`
	Selected  bool     `json:"selected"`
	Segments  [][2]int `json:"segments"`
}

// overlayJSON is what a renderer draws for a focused agent: the branch
// detours of a path agent, or the reservations of a space agent at Tick.
type overlayJSON struct {
	AgentID string                 `json:"agent_id"`
	Tick    int                    `json:"tick"`
	Paths   [][]model.Coordinate4D `json:"paths"`
	Spaces  []*model.Space         `json:"spaces"`
}

type ownerJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color,omitempty"`
	Agents         int    `json:"agents"`
	TotalTimeInAir int    `json:"total_time_in_air"`
}

type tickRequest struct {
	Tick *int `json:"tick" binding:"required,gte=0"`
}

type selectionRequest struct {
	AgentIDs []string `json:"agent_ids"`
	All      bool     `json:"all"`
}

type focusRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.sess.Loaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"session_id": s.sess.ID(),
		"source":     s.sess.Source(),
		"loaded_at":  s.sess.LoadedAt(),
	})
}

func (s *Server) handleView(c *gin.Context) {
	v, err := s.sess.View()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleTimeline(c *gin.Context) {
	var tl core.Timeline
	err := s.sess.Read(func(sim *core.Simulation) error {
		tl = sim.Timeline()
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (s *Server) handleTimelineEvents(c *gin.Context) {
	out := make(map[int][]timelineEventJSON)
	err := s.sess.Read(func(sim *core.Simulation) error {
		for tick, evs := range sim.TimelineEvents() {
			list := make([]timelineEventJSON, 0, len(evs))
			for _, e := range evs {
				list = append(list, timelineEventJSON{AgentID: e.AgentID, flightEventJSON: newFlightEventJSON(e.Event)})
			}
			out[tick] = list
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAgents(c *gin.Context) {
	var out []agentJSON
	err := s.sess.Read(func(sim *core.Simulation) error {
		selected := make(map[string]bool)
		for _, id := range sim.SelectedAgentIDs() {
			selected[id] = true
		}
		agents := sim.Agents()
		out = make([]agentJSON, 0, len(agents))
		for _, a := range agents {
			aj := agentJSON{
				ID:       a.ID,
				Name:     a.Name,
				Owner:    a.OwnerID(),
				Kind:     a.Kind.String(),
				Color:    a.Color,
				Selected: selected[a.ID],
				Segments: a.SegmentsStartEnd(),
			}
			if aj.Segments == nil {
				aj.Segments = [][2]int{}
			}
			if first, ok := a.VeryFirstTick(); ok {
				aj.FirstTick = &first
			}
			if last, ok := a.VeryLastTick(); ok {
				aj.LastTick = &last
			}
			out = append(out, aj)
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAgentEvents(c *gin.Context) {
	id := c.Param("id")
	var out []flightEventJSON
	err := s.sess.Read(func(sim *core.Simulation) error {
		a, ok := sim.Agent(id)
		if !ok {
			return core.ErrAgentNotFound
		}
		evs := a.Events()
		out = make([]flightEventJSON, 0, len(evs))
		for _, e := range evs {
			out = append(out, newFlightEventJSON(e))
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAgentOverlay(c *gin.Context) {
	id := c.Param("id")
	var out overlayJSON
	err := s.sess.Read(func(sim *core.Simulation) error {
		a, ok := sim.Agent(id)
		if !ok {
			return core.ErrAgentNotFound
		}
		out = overlayJSON{
			AgentID: a.ID,
			Tick:    sim.Tick(),
			Paths:   make([][]model.Coordinate4D, 0),
			Spaces:  append([]*model.Space{}, a.SpacesAtTick(sim.Tick())...),
		}
		for _, p := range a.Overlay() {
			out.Paths = append(out.Paths, session.PathCoordinates(p))
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleOwners(c *gin.Context) {
	var out []ownerJSON
	err := s.sess.Read(func(sim *core.Simulation) error {
		owners := sim.Owners()
		out = make([]ownerJSON, 0, len(owners))
		for _, o := range owners {
			out = append(out, ownerJSON{
				ID:             o.ID,
				Name:           o.Name,
				Color:          o.Color,
				Agents:         len(o.Agents),
				TotalTimeInAir: o.TotalTimeInAir(),
			})
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleBuildings(c *gin.Context) {
	if !s.sess.Loaded() {
		s.fail(c, core.ErrNotLoaded)
		return
	}
	tiles := s.sess.Buildings()
	if tiles == nil {
		tiles = []maptile.TileBuildings{}
	}
	c.JSON(http.StatusOK, tiles)
}

func (s *Server) handleSetTick(c *gin.Context) {
	var req tickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mutate(c, func(sim *core.Simulation) error { return sim.SetTick(*req.Tick) })
}

func (s *Server) handleSelect(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mutate(c, func(sim *core.Simulation) error {
		ids := req.AgentIDs
		if req.All {
			ids = make([]string, 0)
			for _, a := range sim.Agents() {
				ids = append(ids, a.ID)
			}
		}
		if ids == nil {
			ids = []string{}
		}
		return sim.SetSelectedAgentIDs(ids)
	})
}

func (s *Server) handleFocusOn(c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mutate(c, func(sim *core.Simulation) error { return sim.FocusOnAgentID(req.AgentID) })
}

func (s *Server) handleFocusOff(c *gin.Context) {
	s.mutate(c, func(sim *core.Simulation) error { return sim.FocusOff() })
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.sess.Reload(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	s.handleView(c)
}

// mutate applies fn under the session lock and answers with the new view.
func (s *Server) mutate(c *gin.Context, fn func(*core.Simulation) error) {
	var v session.View
	err := s.sess.With(func(sim *core.Simulation) error {
		if err := fn(sim); err != nil {
			return err
		}
		v = session.NewView(sim)
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
