// Package classroom keeps the room catalogue used to admit reservations. The
// catalogue lives in a flat text file with one "name,TYPE,capacity" line per
// room.
package classroom

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/capacity"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

type RoomType string

const (
	TypeClass RoomType = "CLASS"
	TypeLab   RoomType = "LAB"

	DefaultCapacity = 30
)

// Room is one catalogue entry.
type Room struct {
	Name     string   `json:"name"`
	Type     RoomType `json:"type"`
	Capacity int      `json:"capacity"`
}

// AllowedCapacity is half the capacity, rounded down.
func (r Room) AllowedCapacity() int {
	return r.Capacity / 2
}

func (r Room) line() string {
	return fmt.Sprintf("%s,%s,%d", r.Name, r.Type, r.Capacity)
}

func defaultRooms() []Room {
	rooms := make([]Room, 0, 8)
	for _, name := range []string{"908호", "912호", "913호", "914호"} {
		rooms = append(rooms, Room{Name: name, Type: TypeClass, Capacity: DefaultCapacity})
	}
	for _, name := range []string{"911호", "915호", "916호", "918호"} {
		rooms = append(rooms, Room{Name: name, Type: TypeLab, Capacity: DefaultCapacity})
	}
	return rooms
}

// Catalog is a capacity.Gate backed by a flat file.
type Catalog struct {
	path    string
	mu      sync.RWMutex
	rooms   map[string]Room
	writeMu sync.Mutex // serializes file rewrites
}

var _ capacity.Gate = (*Catalog)(nil)

// NewCatalog loads path, writing the default catalogue first when the file
// does not exist.
func NewCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path, rooms: map[string]Room{}}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		for _, r := range defaultRooms() {
			c.rooms[r.Name] = r
		}
		if err := c.persist(); err != nil {
			return nil, err
		}
		logger.L().Info("Classroom file missing, default catalogue written", zap.String("path", path))
		return c, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat classroom file: %w", err)
	}

	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh reloads the catalogue from disk, replacing the in-memory copy.
func (c *Catalog) Refresh() error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open classroom file: %w", err)
	}
	defer f.Close()

	rooms := map[string]Room{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseRoom(line)
		if err != nil {
			logger.L().Warn("Skipping malformed classroom line",
				zap.String("path", c.path),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		rooms[r.Name] = r
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read classroom file: %w", err)
	}

	c.mu.Lock()
	c.rooms = rooms
	c.mu.Unlock()

	logger.L().Info("Classroom catalogue loaded", zap.String("path", c.path), zap.Int("rooms", len(rooms)))
	return nil
}

func parseRoom(line string) (Room, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return Room{}, fmt.Errorf("expected name,TYPE,capacity, got %d fields", len(parts))
	}
	r := Room{Name: strings.TrimSpace(parts[0]), Type: RoomType(strings.TrimSpace(parts[1]))}
	if r.Name == "" {
		return Room{}, errors.New("empty room name")
	}
	if r.Type != TypeClass && r.Type != TypeLab {
		return Room{}, fmt.Errorf("unknown room type %q", r.Type)
	}
	size, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || size < 0 {
		return Room{}, fmt.Errorf("bad capacity %q", parts[2])
	}
	r.Capacity = size
	return r, nil
}

func (c *Catalog) CheckCapacity(room string, requested int) bool {
	r, ok := c.Room(room)
	if !ok {
		return false
	}
	return requested <= r.AllowedCapacity()
}

func (c *Catalog) ClassroomExists(room string) bool {
	_, ok := c.Room(room)
	return ok
}

func (c *Catalog) Room(name string) (Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[name]
	return r, ok
}

// Rooms lists the catalogue, classrooms before labs, each group by name.
func (c *Catalog) Rooms() []Room {
	c.mu.RLock()
	out := make([]Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		out = append(out, r)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == TypeClass
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// UpdateCapacity changes an existing room's capacity and rewrites the file.
func (c *Catalog) UpdateCapacity(room string, capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", capacity)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	r, ok := c.rooms[room]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", domain.ErrUnknownRoom, room)
	}
	previous := r.Capacity
	r.Capacity = capacity
	c.rooms[room] = r
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		c.mu.Lock()
		r.Capacity = previous
		c.rooms[room] = r
		c.mu.Unlock()
		return err
	}

	logger.L().Info("Classroom capacity updated",
		zap.String("room", room),
		zap.Int("previous", previous),
		zap.Int("capacity", capacity),
	)
	return nil
}

// persist writes the catalogue to a temp file and renames it over the target.
func (c *Catalog) persist() error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create classroom dir: %w", err)
		}
	}

	var b strings.Builder
	for _, r := range c.Rooms() {
		b.WriteString(r.line())
		b.WriteByte('\n')
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write classroom file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace classroom file: %w", err)
	}
	return nil
}
