package socketio

import (
	"net"
	"sync"
)

// ConnectionLimiter caps the number of concurrent external (non-localhost)
// connections. Local connections (127.0.0.1, ::1) are always allowed without
// limit. When a new external connection exceeds the cap, the oldest external
// connection is evicted rather than the new one refused.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// ordered slice of external client IDs (oldest first)
	externalClients []string
	// all tracked connections: clientID -> remoteIP
	connections map[string]string
}

// NewConnectionLimiter creates a limiter that allows up to maxExternal
// concurrent non-localhost connections.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal:     maxExternal,
		externalClients: make([]string, 0),
		connections:     make(map[string]string),
	}
}

// Register tracks a new connection and returns the ID of any evicted client
// (empty string if none). The new connection itself is always admitted.
func (cl *ConnectionLimiter) Register(clientID, remoteAddr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return ""
	}

	ip := hostOnly(remoteAddr)
	cl.connections[clientID] = ip

	if isLocalIP(ip) {
		// Local connections are never counted against the cap.
		return ""
	}

	cl.externalClients = append(cl.externalClients, clientID)

	if len(cl.externalClients) > cl.maxExternal {
		evictedID = cl.externalClients[0]
		cl.externalClients = cl.externalClients[1:]
		delete(cl.connections, evictedID)
	}
	return evictedID
}

// Release unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Release(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ip, exists := cl.connections[clientID]
	if !exists {
		return
	}
	delete(cl.connections, clientID)

	if isLocalIP(ip) {
		return
	}

	for i, id := range cl.externalClients {
		if id == clientID {
			cl.externalClients = append(cl.externalClients[:i], cl.externalClients[i+1:]...)
			break
		}
	}
}

// hostOnly strips a port suffix if the address carries one.
func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// isLocalIP returns true if the IP address is localhost.
func isLocalIP(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1"
}
