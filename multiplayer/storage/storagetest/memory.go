// Package storagetest provides in-memory implementations of the storage
// interfaces for tests. Loads and saves copy documents, so callers see the
// same last-write-wins behaviour as the real stores.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"storyserver/models"
	"storyserver/multiplayer/storage"

	"gorm.io/gorm"
)

// Rooms is an in-memory storage.RoomStore.
type Rooms struct {
	mu     sync.Mutex
	nextID uint
	rooms  map[string]*models.Room

	// SaveErr, when set, is returned by the next Save.
	SaveErr error
	Saves   int
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*models.Room)}
}

func (s *Rooms) Create(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.RoomCode]; ok {
		return storage.ErrCodeTaken
	}
	s.nextID++
	room.ID = s.nextID
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	s.rooms[room.RoomCode] = room.Clone()
	return nil
}

func (s *Rooms) LoadByCode(_ context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return room.Clone(), nil
}

func (s *Rooms) Save(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.SaveErr; err != nil {
		s.SaveErr = nil
		return err
	}
	s.Saves++
	room.UpdatedAt = time.Now()
	s.rooms[room.RoomCode] = room.Clone()
	return nil
}

func (s *Rooms) DeleteUntouchedSince(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for code, room := range s.rooms {
		if !room.UpdatedAt.After(cutoff) {
			delete(s.rooms, code)
			n++
		}
	}
	return n, nil
}

// Put stores room as is, for test setup.
func (s *Rooms) Put(room *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.ID == 0 {
		s.nextID++
		room.ID = s.nextID
	}
	s.rooms[room.RoomCode] = room.Clone()
}

// Get returns the stored room without going through a load.
func (s *Rooms) Get(code string) *models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[code]; ok {
		return room.Clone()
	}
	return nil
}

// Stories is an in-memory storage.StoryStore.
type Stories struct {
	mu      sync.Mutex
	nextID  uint
	stories map[uint]*models.Story

	// FailCopyFor makes UpsertCopy fail for the given users.
	FailCopyFor map[string]error
	ReassignErr error
	SaveErr     error
}

func NewStories() *Stories {
	return &Stories{stories: make(map[uint]*models.Story), FailCopyFor: map[string]error{}}
}

func (s *Stories) Create(_ context.Context, story *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.create(story)
	return nil
}

func (s *Stories) create(story *models.Story) {
	s.nextID++
	story.ID = s.nextID
	story.CreatedAt = time.Now()
	story.UpdatedAt = story.CreatedAt
	s.stories[story.ID] = story.Clone()
}

func (s *Stories) Load(_ context.Context, id uint) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return story.Clone(), nil
}

func (s *Stories) Save(_ context.Context, story *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	story.UpdatedAt = time.Now()
	s.stories[story.ID] = story.Clone()
	return nil
}

func (s *Stories) UpsertCopy(_ context.Context, userID, roomCode string, src *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailCopyFor[userID]; err != nil {
		return err
	}

	cp := src.Clone()
	cp.Model = gorm.Model{}
	cp.UserID = userID
	cp.RoomCode = roomCode
	cp.IsMultiplayer = true

	for id, existing := range s.stories {
		if existing.UserID == userID && existing.RoomCode == roomCode && existing.IsMultiplayer {
			cp.Model = existing.Model
			cp.ID = id
			s.stories[id] = cp
			return nil
		}
	}
	s.create(cp)
	return nil
}

func (s *Stories) Reassign(_ context.Context, id uint, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReassignErr != nil {
		return s.ReassignErr
	}
	story, ok := s.stories[id]
	if !ok {
		return storage.ErrNotFound
	}
	if story.IsMultiplayer {
		for otherID, other := range s.stories {
			if otherID != id && other.UserID == userID && other.RoomCode == story.RoomCode && other.IsMultiplayer {
				delete(s.stories, otherID)
			}
		}
	}
	story.UserID = userID
	return nil
}

// ByRoom returns every story tagged with roomCode, ordered by id.
func (s *Stories) ByRoom(roomCode string) []*models.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Story
	for _, story := range s.stories {
		if story.RoomCode == roomCode {
			out = append(out, story.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomCache is an in-memory storage.RoomCache without expiry.
type RoomCache struct {
	mu    sync.Mutex
	views map[string][]byte
}

func NewRoomCache() *RoomCache {
	return &RoomCache{views: make(map[string][]byte)}
}

func (c *RoomCache) Get(_ context.Context, code string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (c *RoomCache) Set(_ context.Context, code string, view []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[code] = view
	return nil
}

func (c *RoomCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, code)
	return nil
}

// Notifier is an in-memory storage.Notifier.
type Notifier struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string][]chan struct{})}
}

func (n *Notifier) Publish(_ context.Context, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[code] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *Notifier) Subscribe(_ context.Context, code string) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{}, 1)
	n.subs[code] = append(n.subs[code], ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			subs := n.subs[code]
			for i, c := range subs {
				if c == ch {
					n.subs[code] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}

// CopyQueue is an in-memory storage.CopyQueue.
type CopyQueue struct {
	mu   sync.Mutex
	Jobs []storage.CopyJob
}

func (q *CopyQueue) Enqueue(_ context.Context, job storage.CopyJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Jobs = append(q.Jobs, job)
	return nil
}

func (q *CopyQueue) Dequeue(_ context.Context) (storage.CopyJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.Jobs) == 0 {
		return storage.CopyJob{}, storage.ErrNotFound
	}
	job := q.Jobs[0]
	q.Jobs = q.Jobs[1:]
	return job, nil
}

// Len returns the number of queued jobs.
func (q *CopyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Jobs)
}
