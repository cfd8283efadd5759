package relay

import "time"

// Room pairs one host with at most one client.
type Room struct {
	Code    string
	Host    *Conn
	Client  *Conn
	Created time.Time
}

// peer returns the other member of the room.
func (r *Room) peer(c *Conn) *Conn {
	if c == r.Host {
		return r.Client
	}
	return r.Host
}

// RoomInfo is the public view of a room.
type RoomInfo struct {
	Code      string `json:"code"`
	HasHost   bool   `json:"hasHost"`
	HasClient bool   `json:"hasClient"`
}

func (r *Room) info() RoomInfo {
	return RoomInfo{Code: r.Code, HasHost: r.Host != nil, HasClient: r.Client != nil}
}
