package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/config"
	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/duelarena"
	"github.com/ernie/trinity-arena/internal/playercache"
	"github.com/ernie/trinity-arena/internal/plugin"
	"github.com/ernie/trinity-arena/internal/storage"
)

// ErrUnknownServer is returned for server IDs the manager does not drive
var ErrUnknownServer = errors.New("server not found")

// Publisher forwards arena events to a message broker
type Publisher interface {
	Publish(e domain.Event) error
}

// ServerManager drives every configured server: it follows the game log,
// polls status over UDP and runs one arena controller per server.
type ServerManager struct {
	cfg       *config.Config
	store     *storage.Store
	names     playercache.Cache
	publisher Publisher
	log       zerolog.Logger

	q3client *Q3Client
	rcon     rconSender
	sched    duelarena.Scheduler

	events  chan domain.Event
	journal chan domain.Event
	outbox  chan domain.Event

	mu      sync.RWMutex
	servers map[int64]*serverState
	tailers map[int64]*LogTailer
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewServerManager creates a new manager. store and publisher may be nil.
func NewServerManager(cfg *config.Config, store *storage.Store, names playercache.Cache, publisher Publisher, logger zerolog.Logger) *ServerManager {
	q3client := NewQ3Client()
	if names == nil {
		names = playercache.NewMemoryCache()
	}
	return &ServerManager{
		cfg:       cfg,
		store:     store,
		names:     names,
		publisher: publisher,
		log:       logger.With().Str("component", "collector").Logger(),
		q3client:  q3client,
		rcon:      q3client,
		sched:     duelarena.NewScheduler(),
		events:    make(chan domain.Event, 100),
		journal:   make(chan domain.Event, 256),
		outbox:    make(chan domain.Event, 256),
		servers:   make(map[int64]*serverState),
		tailers:   make(map[int64]*LogTailer),
		done:      make(chan struct{}),
	}
}

// Events returns the event channel for WebSocket broadcasting
func (m *ServerManager) Events() <-chan domain.Event {
	return m.events
}

// Start registers the configured servers, rebuilds their state from the
// logs and begins tailing and polling.
func (m *ServerManager) Start(ctx context.Context) error {
	for i, srv := range m.cfg.Q3Servers {
		server := domain.Server{
			ID:      int64(i + 1),
			Name:    srv.Name,
			Address: srv.Address,
			LogPath: srv.LogPath,
		}
		if m.store != nil {
			if err := m.store.UpsertServer(ctx, &server); err != nil {
				return err
			}
		}

		state, err := m.addServer(server, srv)
		if err != nil {
			return err
		}
		log := m.log.With().Int64("server_id", server.ID).Str("server", server.Name).Logger()

		if srv.LogPath == "" {
			log.Warn().Msg("No log path configured, arena disabled for this server")
			continue
		}

		tailer := NewLogTailer(srv.LogPath)
		log.Info().Str("path", srv.LogPath).Msg("Replaying log")
		if err := tailer.Replay(func(event LogEvent) {
			m.handleLogEvent(ctx, state, event, true)
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to replay log")
		}
		state.arena.Reload()

		if err := tailer.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start log tailer")
			continue
		}
		m.mu.Lock()
		m.tailers[server.ID] = tailer
		m.mu.Unlock()
		m.wg.Add(1)
		go m.processLogEvents(ctx, state, tailer)
	}

	m.wg.Add(1)
	go m.pollLoop(ctx)

	if m.store != nil {
		m.wg.Add(1)
		go m.journalLoop(ctx)
	}
	if m.publisher != nil {
		m.wg.Add(1)
		go m.publishLoop(ctx)
	}

	m.log.Info().Int("servers", len(m.servers)).Msg("Startup complete")
	return nil
}

// Stop stops all polling and log watching
func (m *ServerManager) Stop() {
	m.log.Info().Msg("ServerManager: stopping...")
	close(m.done)
	m.mu.RLock()
	for _, tailer := range m.tailers {
		tailer.Stop()
	}
	for _, state := range m.servers {
		state.arena.Reset()
	}
	m.mu.RUnlock()
	m.wg.Wait()
	m.log.Info().Msg("ServerManager: shutdown complete")
}

// addServer builds the roster, host, dispatcher and arena controller of one server
func (m *ServerManager) addServer(server domain.Server, srv config.Q3Server) (*serverState, error) {
	log := m.log.With().Int64("server_id", server.ID).Logger()

	state := newServerState(server, srv)
	state.host = newRconHost(state, m.rcon, log)
	state.dispatcher = plugin.NewDispatcher(
		func(id domain.PlayerID) int { return srv.Permission(string(id)) },
		func(p domain.Player, text string) {
			if err := state.host.tellClient(p.ClientNum, text); err != nil {
				log.Warn().Err(err).Int("client", p.ClientNum).Msg("Failed to reply")
			}
		},
	)
	state.arena = duelarena.New(state.host, m.sched, m.cfg.Arena, log, duelarena.Options{
		ServerID: server.ID,
		Notifier: m,
		Names:    playercache.Resolver{Cache: m.names},
	})
	if err := state.arena.Register(state.dispatcher); err != nil {
		return nil, fmt.Errorf("registering arena for %s: %w", server.Address, err)
	}

	m.mu.Lock()
	m.servers[server.ID] = state
	m.mu.Unlock()
	return state, nil
}

func (m *ServerManager) server(serverID int64) (*serverState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.servers[serverID]
	if !ok {
		return nil, ErrUnknownServer
	}
	return state, nil
}

// GetServerStatus returns the current status for a server
func (m *ServerManager) GetServerStatus(serverID int64) *domain.ServerStatus {
	state, err := m.server(serverID)
	if err != nil {
		return nil
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.status
}

// GetAllStatuses returns current status for all servers
func (m *ServerManager) GetAllStatuses() []domain.ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []domain.ServerStatus
	for _, state := range m.servers {
		state.mu.RLock()
		if state.status != nil {
			statuses = append(statuses, *state.status)
		}
		state.mu.RUnlock()
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ServerID < statuses[j].ServerID
	})
	return statuses
}

// ArenaState returns a snapshot of a server's arena controller
func (m *ServerManager) ArenaState(serverID int64) (domain.ArenaState, error) {
	state, err := m.server(serverID)
	if err != nil {
		return domain.ArenaState{}, err
	}
	return state.arena.Snapshot(), nil
}

// SetArenaStrategy switches a server's activation strategy
func (m *ServerManager) SetArenaStrategy(serverID int64, s duelarena.Strategy, source string) error {
	state, err := m.server(serverID)
	if err != nil {
		return err
	}
	state.arena.SetStrategy(s, source)
	return nil
}

// ExecuteRcon sends an RCON command to a server and returns the response
func (m *ServerManager) ExecuteRcon(serverID int64, command string) (string, error) {
	state, err := m.server(serverID)
	if err != nil {
		return "", err
	}
	if state.cfg.RconPassword == "" {
		return "", errNoRcon
	}
	return m.q3client.RconCommand(state.server.Address, state.cfg.RconPassword, command)
}

// HasRconAccess checks if a server has RCON configured
func (m *ServerManager) HasRconAccess(serverID int64) bool {
	state, err := m.server(serverID)
	return err == nil && state.cfg.RconPassword != ""
}

// Notify receives arena events from the controllers. It never blocks: the
// websocket feed, journal and broker outbox are buffered and drop when full.
func (m *ServerManager) Notify(e domain.Event) {
	m.emitEvent(e)

	if m.store != nil {
		select {
		case m.journal <- e:
		default:
			m.log.Warn().Str("event", e.Type).Msg("Journal queue full, dropping event")
		}
	}

	if m.publisher != nil {
		select {
		case m.outbox <- e:
		default:
			m.log.Warn().Str("event", e.Type).Msg("Publish queue full, dropping event")
		}
	}
}

// emitEvent sends an event to the event channel
func (m *ServerManager) emitEvent(event domain.Event) {
	select {
	case m.events <- event:
	default:
		// Channel full, drop event
	}
}

// journalLoop writes arena events to the store off the controller's lock
func (m *ServerManager) journalLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case e := <-m.journal:
			if err := m.store.RecordArenaEvent(ctx, e); err != nil {
				m.log.Error().Err(err).Str("event", e.Type).Msg("Failed to journal arena event")
			}
		}
	}
}

// publishLoop hands arena events to the broker off the controller's lock
func (m *ServerManager) publishLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case e := <-m.outbox:
			if err := m.publisher.Publish(e); err != nil {
				m.log.Warn().Err(err).Str("event", e.Type).Msg("Failed to publish event")
			}
		}
	}
}

// pollLoop periodically queries all servers via UDP
func (m *ServerManager) pollLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Server.PollInterval)
	defer ticker.Stop()

	m.pollAll()

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollAll()
		}
	}
}

// pollAll queries all servers
func (m *ServerManager) pollAll() {
	m.mu.RLock()
	states := make([]*serverState, 0, len(m.servers))
	for _, state := range m.servers {
		states = append(states, state)
	}
	m.mu.RUnlock()

	for _, state := range states {
		status, err := m.q3client.QueryStatus(state.server.Address)
		if err != nil {
			m.log.Debug().Err(err).Str("server", state.server.Name).Msg("Error polling server")
			status = &domain.ServerStatus{
				Name:        state.server.Name,
				Address:     state.server.Address,
				LastUpdated: time.Now().UTC(),
			}
		}
		status.ServerID = state.server.ID
		status.Name = state.server.Name

		state.mu.Lock()
		state.applyStatus(status)
		state.mu.Unlock()

		m.emitEvent(domain.Event{
			Type:      domain.EventServerUpdate,
			ServerID:  state.server.ID,
			Timestamp: time.Now().UTC(),
			Data:      status,
		})
	}
}

// applyStatus stores a polled status and copies pings onto the tracked
// clients. Caller holds mu.
func (s *serverState) applyStatus(status *domain.ServerStatus) {
	s.status = status
	status.HumanCount = 0
	status.BotCount = 0

	for i := range status.Players {
		player := &status.Players[i]
		var client *clientState
		if player.ClientNum >= 0 {
			client = s.clients[player.ClientNum]
		} else {
			// stock servers omit the client number; fall back to the name
			for _, c := range s.clients {
				if c.name == player.Name {
					client = c
					break
				}
			}
		}

		if client != nil {
			client.ping = player.Ping
			player.PlayerID = client.playerID
			player.IsBot = client.isBot
			player.Team = int(client.team)
		}
		if player.IsBot {
			status.BotCount++
		} else {
			status.HumanCount++
		}
	}
}

// processLogEvents handles events from a log tailer
func (m *ServerManager) processLogEvents(ctx context.Context, state *serverState, tailer *LogTailer) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case err := <-tailer.Errors:
			m.log.Warn().Err(err).Int64("server_id", state.server.ID).Msg("Log tailer error")
		case event := <-tailer.Events:
			m.handleLogEvent(ctx, state, event, false)
		}
	}
}

// handleLogEvent applies one log event to the server state and then runs
// the plugin hooks it triggers. During replay only state is rebuilt.
func (m *ServerManager) handleLogEvent(ctx context.Context, state *serverState, event LogEvent, replayMode bool) {
	dispatch := m.applyLogEvent(ctx, state, event)
	if dispatch != nil && !replayMode {
		dispatch()
	}
}

// applyLogEvent updates state under its lock and returns the hook work to
// run once the lock is released.
func (m *ServerManager) applyLogEvent(ctx context.Context, state *serverState, event LogEvent) func() {
	state.mu.Lock()
	defer state.mu.Unlock()

	serverID := state.server.ID
	d := state.dispatcher

	switch event.Type {
	case EventTypeInitGame:
		data := event.Data.(InitGameData)
		state.game = &domain.Game{
			Map:        data.MapName,
			Factory:    data.Factory,
			Type:       domain.GameTypeFromInt(data.GameType),
			State:      domain.MatchWarmup,
			RoundLimit: data.RoundLimit,
		}
		clear(state.reverts)
		game := *state.game
		return func() {
			d.FireMapChange(game.Map, game.Factory)
			m.emitEvent(domain.Event{
				Type:      domain.EventMatchStart,
				ServerID:  serverID,
				Timestamp: event.Timestamp,
				Data:      domain.MatchStartEvent{Map: game.Map, GameType: game.Type, Factory: game.Factory},
			})
		}

	case EventTypeWarmup:
		if state.game != nil {
			state.game.State = domain.MatchWarmup
		}

	case EventTypeWarmupEnd:
		if state.game != nil {
			state.game.State = domain.MatchInProgress
		}

	case EventTypeMatchState:
		data := event.Data.(MatchStateData)
		if state.game != nil {
			state.game.State = domain.MatchStateFromLog(data.State)
		}

	case EventTypeClientConnect:
		data := event.Data.(ClientConnectData)
		state.clients[data.ClientID] = &clientState{clientID: data.ClientID, team: domain.TeamSpectator}
		delete(state.reverts, data.ClientID)

	case EventTypeClientUserinfo:
		data := event.Data.(ClientUserinfoData)
		client, ok := state.clients[data.ClientID]
		if !ok {
			client = &clientState{clientID: data.ClientID, team: domain.TeamSpectator}
			state.clients[data.ClientID] = client
		}
		fresh := client.playerID == ""
		client.name = data.Name
		client.cleanName = domain.CleanQ3Name(data.Name)
		client.isBot = data.IsBot || data.GUID == ""
		if client.isBot {
			client.playerID = domain.BotPlayerID(client.cleanName)
		} else {
			client.playerID = domain.PlayerID(data.GUID)
		}
		if fresh {
			state.setTeam(client, domain.TeamFromInt(data.Team))
		}

		if client.isBot {
			return nil
		}
		id, name := client.playerID, client.name
		return func() {
			cctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := m.names.SetLastUsedName(cctx, id, name); err != nil {
				m.log.Warn().Err(err).Str("player_id", string(id)).Msg("Failed to cache player name")
			}
		}

	case EventTypeClientBegin:
		data := event.Data.(ClientConnectData)
		client, ok := state.clients[data.ClientID]
		if !ok || client.playerID == "" {
			return nil
		}
		client.begun = true
		p := client.player()
		return func() {
			d.FirePlayerLoaded(p)
			m.emitEvent(domain.Event{
				Type:      domain.EventPlayerJoin,
				ServerID:  serverID,
				Timestamp: event.Timestamp,
				Data: domain.PlayerJoinEvent{Player: domain.PlayerStatus{
					ClientNum: p.ClientNum,
					PlayerID:  p.ID,
					Name:      p.Name,
					CleanName: p.CleanName,
					IsBot:     p.IsBot,
					Team:      int(p.Team),
					JoinedAt:  event.Timestamp,
				}},
			})
		}

	case EventTypeClientDisconnect:
		data := event.Data.(ClientDisconnectData)
		client, ok := state.clients[data.ClientID]
		if !ok {
			return nil
		}
		delete(state.clients, data.ClientID)
		delete(state.reverts, data.ClientID)
		if client.playerID == "" {
			return nil
		}
		p := client.player()
		p.Connected = false
		return func() {
			d.FireDisconnect(p)
			m.emitEvent(domain.Event{
				Type:      domain.EventPlayerLeave,
				ServerID:  serverID,
				Timestamp: event.Timestamp,
				Data:      domain.PlayerLeaveEvent{PlayerName: p.CleanName, PlayerID: p.ID},
			})
		}

	case EventTypeTeamChange:
		data := event.Data.(TeamChangeData)
		client, ok := state.clients[data.ClientID]
		if !ok || client.playerID == "" {
			return nil
		}
		oldTeam := domain.TeamFromInt(data.OldTeam)
		newTeam := domain.TeamFromInt(data.NewTeam)

		if want, ok := state.reverts[data.ClientID]; ok && want == newTeam {
			delete(state.reverts, data.ClientID)
			state.setTeam(client, newTeam)
			return nil
		}
		state.setTeam(client, newTeam)
		p := client.player()
		host := state.host

		return func() {
			if d.FireTeamSwitch(p, oldTeam, newTeam) == plugin.StopAll {
				if err := host.revert(p.ClientNum, oldTeam); err != nil {
					m.log.Warn().Err(err).Int("client", p.ClientNum).Msg("Failed to revert team switch")
				}
				return
			}
			m.emitEvent(domain.Event{
				Type:      domain.EventTeamChange,
				ServerID:  serverID,
				Timestamp: event.Timestamp,
				Data: domain.TeamChangeEvent{
					PlayerName: p.CleanName,
					PlayerID:   p.ID,
					OldTeam:    oldTeam,
					NewTeam:    newTeam,
				},
			})
		}

	case EventTypeSay:
		data := event.Data.(SayData)
		client, ok := state.clients[data.ClientID]
		if !ok || client.playerID == "" {
			return nil
		}
		p := client.player()
		return func() {
			if handled, result := d.HandleChat(p, data.Message); handled {
				m.log.Debug().Str("player_id", string(p.ID)).Str("message", data.Message).
					Stringer("result", result).Msg("Chat command")
			}
		}

	case EventTypeGameCountdown:
		if state.game != nil {
			state.game.State = domain.MatchCountdown
		}
		return d.FireGameCountdown

	case EventTypeRoundCountdown:
		data := event.Data.(RoundCountdownData)
		return func() { d.FireRoundCountdown(data.Round) }

	case EventTypeRoundEnd:
		data := event.Data.(RoundEndData)
		state.applyScores(data.RedScore, data.BlueScore)
		return func() { d.FireRoundEnd(data.Winner) }

	case EventTypeExit:
		data := event.Data.(ExitEventData)
		state.applyScores(data.RedScore, data.BlueScore)
		if state.game == nil {
			return nil
		}
		state.game.State = domain.MatchIntermission
		result := domain.GameResult{
			Reason:    data.Reason,
			Aborted:   isAbortReason(data.Reason),
			RedScore:  state.game.RedScore,
			BlueScore: state.game.BlueScore,
		}
		return func() {
			d.FireGameEnd(result)
			m.emitEvent(domain.Event{
				Type:      domain.EventMatchEnd,
				ServerID:  serverID,
				Timestamp: event.Timestamp,
				Data:      domain.MatchEndEvent{ExitReason: result.Reason, RedScore: result.RedScore, BlueScore: result.BlueScore},
			})
		}

	case EventTypeShutdown:
		state.game = nil
	}

	return nil
}

// applyScores copies team scores reported by the log. Caller holds mu.
func (s *serverState) applyScores(red, blue *int) {
	if s.game == nil {
		return
	}
	if red != nil {
		s.game.RedScore = *red
	}
	if blue != nil {
		s.game.BlueScore = *blue
	}
}

// RecentLog returns the last lines of a server's game log
func (m *ServerManager) RecentLog(serverID int64, n int) ([]string, error) {
	state, err := m.server(serverID)
	if err != nil {
		return nil, err
	}
	if state.cfg.LogPath == "" {
		return nil, fmt.Errorf("no log configured for server %d", serverID)
	}
	return ReadLastLines(state.cfg.LogPath, n)
}
