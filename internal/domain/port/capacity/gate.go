package capacity

// Gate answers admission questions about rooms.
type Gate interface {
	// CheckCapacity reports whether requested people fit in half of room's capacity.
	// Unknown rooms never fit.
	CheckCapacity(room string, requested int) bool
	ClassroomExists(room string) bool
}
