package server

import "sync"

// registry tracks live connections. Each (table, player) pair has at most
// one authoritative connection; only that one receives table broadcasts.
type registry struct {
	mu   sync.RWMutex
	byID map[string]*Connection
	// byTable maps table id to player id to the authoritative connection.
	byTable map[string]map[string]*Connection
}

func newRegistry() *registry {
	return &registry{
		byID:    make(map[string]*Connection),
		byTable: make(map[string]map[string]*Connection),
	}
}

// add registers c as the authoritative connection for its player and
// returns the connection it replaced, if any.
func (r *registry) add(c *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	players := r.byTable[c.tableID]
	if players == nil {
		players = make(map[string]*Connection)
		r.byTable[c.tableID] = players
	}
	prev := players[c.playerID]
	r.byID[c.id] = c
	players[c.playerID] = c
	return prev
}

// remove forgets c and reports whether it was still authoritative.
func (r *registry) remove(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, c.id)
	players := r.byTable[c.tableID]
	if players[c.playerID] != c {
		return false
	}
	delete(players, c.playerID)
	if len(players) == 0 {
		delete(r.byTable, c.tableID)
	}
	return true
}

func (r *registry) owns(c *Connection) bool {
	return r.get(c.tableID, c.playerID) == c
}

func (r *registry) get(tableID, playerID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byTable[tableID][playerID]
}

// forTable returns the authoritative connections at a table.
func (r *registry) forTable(tableID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	players := r.byTable[tableID]
	out := make([]*Connection, 0, len(players))
	for _, c := range players {
		out = append(out, c)
	}
	return out
}

func (r *registry) all() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

