package player

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"cadence/internal/library"
	"cadence/pkg/models"

	"github.com/sirupsen/logrus"
)

// Media-key actions understood by HandleMediaKey. They mirror the OS media
// session action names.
const (
	MediaKeyPlay     = "play"
	MediaKeyPause    = "pause"
	MediaKeyPrevious = "previoustrack"
	MediaKeyNext     = "nexttrack"
)

// ErrNoSong is returned for playback operations before any song has ever
// been selected.
var ErrNoSong = errors.New("no song loaded")

// Source abstracts the audio resource behind the player. The HTTP app uses a
// media-file backed source; tests substitute their own.
type Source interface {
	// Load prepares the resource for a song and returns its duration in
	// seconds. Called once per distinct song selection.
	Load(song models.Song) (float64, error)
	// Play starts or resumes the resource. A failed start is non-fatal.
	Play() error
	// Pause suspends the resource.
	Pause()
	// SetPosition moves the resource to an absolute position in seconds.
	SetPosition(seconds float64)
}

// State is a snapshot of the player, broadcast to subscribers and returned to
// clients.
type State struct {
	Song        *models.Song `json:"song,omitempty"`
	Index       int          `json:"index"`
	Route       Route        `json:"route"`
	IsPlaying   bool         `json:"isPlaying"`
	IsLooping   bool         `json:"isLooping"`
	IsShuffling bool         `json:"isShuffling"`
	IsMuted     bool         `json:"isMuted"`
	IsSeeking   bool         `json:"isSeeking"`
	Volume      float64      `json:"volume"`
	Progress    float64      `json:"progress"`
	Duration    float64      `json:"duration"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Player is the single app-wide playback state machine. It starts idle, with
// no current song; once a song has been selected it stays loaded (playing or
// paused) for the rest of the session. It reads the library and the scope
// resolver but owns only transient playback state.
type Player struct {
	mu     sync.Mutex
	lib    *library.Library
	source Source
	logger *logrus.Logger
	rng    *rand.Rand

	route   Route
	current *models.Song
	index   int

	playing   bool
	looping   bool
	shuffling bool
	seeking   bool

	volume        float64
	preMuteVolume float64
	muted         bool

	progress float64
	duration float64

	shuffled   []models.Song
	shuffleKey string

	listeners []chan State
}

// New creates an idle player over the given library and audio source.
func New(lib *library.Library, source Source, logger *logrus.Logger) *Player {
	return &Player{
		lib:           lib,
		source:        source,
		logger:        logger,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		index:         -1,
		volume:        1.0,
		preMuteVolume: 1.0,
	}
}

// SetRoute updates the navigation context. The active scope follows the
// route, so the current song's index is re-resolved and a stale shuffle
// permutation is rebuilt on next use.
func (p *Player) SetRoute(route Route) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.route = route
	p.resolveIndex()
	p.notifyListeners()
}

// Route returns the current navigation context.
func (p *Player) Route() Route {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.route
}

// SelectSong makes the given song current. Selecting the already-current song
// is a no-op so redundant selections cause no audible restart. A different
// song restarts playback from zero; if the resource fails to load the player
// stays loaded but paused on the offending song and the error is reported.
func (p *Player) SelectSong(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	song, ok := p.lib.Song(id)
	if !ok {
		return library.ErrNotFound
	}
	return p.selectLocked(song)
}

func (p *Player) selectLocked(song models.Song) error {
	if p.current != nil && p.current.ID == song.ID {
		return nil
	}

	wasPlaying := p.playing
	p.current = &song
	p.progress = 0
	p.resolveIndex()

	duration, err := p.source.Load(song)
	if err != nil {
		p.playing = false
		p.duration = song.Duration
		p.notifyListeners()
		p.logger.WithError(err).WithField("song", song.Name).Warn("Audio resource failed to load")
		return fmt.Errorf("failed to load %q: %w", song.Name, err)
	}
	if duration > 0 {
		p.duration = duration
	} else {
		p.duration = song.Duration
	}

	if wasPlaying {
		if err := p.source.Play(); err != nil {
			p.playing = false
			p.notifyListeners()
			p.logger.WithError(err).WithField("song", song.Name).Warn("Playback failed to start")
			return fmt.Errorf("playback failed for %q: %w", song.Name, err)
		}
		p.playing = true
	}

	p.notifyListeners()
	return nil
}

// resolveIndex recomputes the current song's position within the active
// sequence. Must be called with the lock held.
func (p *Player) resolveIndex() {
	if p.current == nil {
		p.index = -1
		return
	}
	p.index = indexOf(p.activeSequence(), p.current.ID)
}

// activeSequence returns the sequence used for navigation: the shuffled
// ordering while shuffle is on, otherwise scope order. The permutation is
// rebuilt whenever the underlying scope has changed since it was drawn.
// Must be called with the lock held.
func (p *Player) activeSequence() []models.Song {
	scope := ResolveScope(p.route, p.lib)
	if !p.shuffling {
		return scope
	}
	if key := scopeFingerprint(scope); key != p.shuffleKey {
		p.reshuffle(scope, key)
	}
	return p.shuffled
}

// reshuffle draws a uniform random permutation of the scope (Fisher-Yates).
// Must be called with the lock held.
func (p *Player) reshuffle(scope []models.Song, key string) {
	shuffled := append([]models.Song{}, scope...)
	p.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	p.shuffled = shuffled
	p.shuffleKey = key
}

// Play resumes playback. A resource that fails to start is reported and
// leaves the player paused.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNoSong
	}
	if p.playing {
		return nil
	}
	if err := p.source.Play(); err != nil {
		p.playing = false
		p.logger.WithError(err).Warn("Playback failed to start")
		return fmt.Errorf("playback failed: %w", err)
	}
	p.playing = true
	p.notifyListeners()
	return nil
}

// Pause suspends playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return
	}
	p.source.Pause()
	p.playing = false
	p.notifyListeners()
}

// SetVolume sets the volume. Zero mutes; a nonzero value while muted unmutes
// and becomes the new restore level. Range validation happens at the boundary.
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = volume
	if volume == 0 {
		p.muted = true
	} else {
		p.muted = false
		p.preMuteVolume = volume
	}
	p.notifyListeners()
}

// ToggleMute mutes, remembering the current volume, or unmutes restoring the
// exact pre-mute level.
func (p *Player) ToggleMute() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.muted {
		p.volume = p.preMuteVolume
		p.muted = false
	} else {
		p.preMuteVolume = p.volume
		p.volume = 0
		p.muted = true
	}
	p.notifyListeners()
}

// BeginSeek marks a seek gesture in progress. While seeking, periodic
// progress reports from the resource are suppressed so the reported position
// follows the drag, not stale playback.
func (p *Player) BeginSeek() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seeking = true
	if p.playing {
		p.source.Pause()
	}
	p.notifyListeners()
}

// EndSeek releases the seek gesture: the resource position is set exactly
// once to the released value and playback resumes if it was playing before
// the gesture. Out-of-range values are rejected at the boundary.
func (p *Player) EndSeek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seeking = false
	p.progress = seconds
	p.source.SetPosition(seconds)
	if p.playing {
		if err := p.source.Play(); err != nil {
			p.playing = false
			p.notifyListeners()
			return fmt.Errorf("playback failed after seek: %w", err)
		}
	}
	p.notifyListeners()
	return nil
}

// ReportProgress records a periodic position/duration report from the audio
// resource. Reports are dropped while a seek gesture is in progress.
func (p *Player) ReportProgress(position, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seeking {
		return
	}
	p.progress = position
	if duration > 0 {
		p.duration = duration
	}
	p.notifyListeners()
}

// Advance handles end-of-track. Loop mode restarts the same song and takes
// precedence over everything else; at the end of the scope playback wraps to
// the first song; otherwise it moves to the next one.
func (p *Player) Advance() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNoSong
	}

	// The library may have mutated since the index was last resolved, so
	// recompute the current song's position before moving.
	p.resolveIndex()

	if p.looping {
		p.progress = 0
		p.source.SetPosition(0)
		if err := p.source.Play(); err != nil {
			p.playing = false
			p.notifyListeners()
			return fmt.Errorf("playback failed: %w", err)
		}
		p.playing = true
		p.notifyListeners()
		return nil
	}

	sequence := p.activeSequence()
	if len(sequence) == 0 {
		return nil
	}

	next := 0
	if p.index >= 0 && p.index < len(sequence)-1 {
		next = p.index + 1
	}
	return p.selectLocked(sequence[next])
}

// Next moves to the following song in the active sequence. Unlike Advance it
// does not wrap: at the upper bound it is a no-op.
func (p *Player) Next() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resolveIndex()
	sequence := p.activeSequence()
	if p.index >= len(sequence)-1 {
		return nil
	}
	return p.selectLocked(sequence[p.index+1])
}

// Previous moves to the preceding song in the active sequence; a no-op at the
// lower bound.
func (p *Player) Previous() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resolveIndex()
	if p.index <= 0 {
		return nil
	}
	sequence := p.activeSequence()
	if p.index-1 >= len(sequence) {
		return nil
	}
	return p.selectLocked(sequence[p.index-1])
}

// ToggleLoop toggles single-song loop mode.
func (p *Player) ToggleLoop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.looping = !p.looping
	p.notifyListeners()
}

// ToggleShuffle toggles shuffle mode. Enabling draws a fresh permutation of
// the active scope; disabling reverts navigation to scope order. The current
// song is never changed by toggling, only the sequence used afterwards.
func (p *Player) ToggleShuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shuffling = !p.shuffling
	if p.shuffling {
		scope := ResolveScope(p.route, p.lib)
		p.reshuffle(scope, scopeFingerprint(scope))
	} else {
		p.shuffled = nil
		p.shuffleKey = ""
	}
	p.resolveIndex()
	p.notifyListeners()
}

// HandleMediaKey maps an OS media-session action onto the corresponding
// player transition.
func (p *Player) HandleMediaKey(action string) error {
	switch action {
	case MediaKeyPlay:
		return p.Play()
	case MediaKeyPause:
		p.Pause()
		return nil
	case MediaKeyPrevious:
		return p.Previous()
	case MediaKeyNext:
		return p.Next()
	default:
		return fmt.Errorf("unknown media key action: %s", action)
	}
}

// State returns a snapshot of the player.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// snapshot must be called with the lock held.
func (p *Player) snapshot() State {
	state := State{
		Index:       p.index,
		Route:       p.route,
		IsPlaying:   p.playing,
		IsLooping:   p.looping,
		IsShuffling: p.shuffling,
		IsMuted:     p.muted,
		IsSeeking:   p.seeking,
		Volume:      p.volume,
		Progress:    p.progress,
		Duration:    p.duration,
		UpdatedAt:   time.Now(),
	}
	if p.current != nil {
		// Resolve against the canonical collection so subscribers see
		// current metadata (artwork set after selection, renames).
		if song, ok := p.lib.Song(p.current.ID); ok {
			state.Song = &song
		} else {
			songCopy := *p.current
			state.Song = &songCopy
		}
	}
	return state
}

// Subscribe registers a listener for state changes. Callers must Unsubscribe
// when their owning component goes away to avoid stale handler leaks.
func (p *Player) Subscribe() <-chan State {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan State, 16)
	p.listeners = append(p.listeners, ch)
	return ch
}

// Unsubscribe removes a listener registered with Subscribe.
func (p *Player) Unsubscribe(ch <-chan State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, listener := range p.listeners {
		if listener == ch {
			close(listener)
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners broadcasts the current snapshot. Slow listeners are dropped
// rather than blocked on. Must be called with the lock held.
func (p *Player) notifyListeners() {
	state := p.snapshot()
	for i := len(p.listeners) - 1; i >= 0; i-- {
		select {
		case p.listeners[i] <- state:
		default:
			close(p.listeners[i])
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
		}
	}
}
