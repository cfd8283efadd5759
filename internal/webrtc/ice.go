package webrtc

import (
	"fmt"

	pion "github.com/pion/webrtc/v4"
)

// ICEServers builds the pion ICE server list from STUN and TURN settings.
// TURN host names get UDP, TCP and TLS variants.
func ICEServers(stun []string, turnHost, turnUser, turnPass string) []pion.ICEServer {
	var servers []pion.ICEServer
	if len(stun) > 0 {
		servers = append(servers, pion.ICEServer{URLs: stun})
	}
	if turnHost != "" {
		servers = append(servers, pion.ICEServer{
			URLs: []string{
				fmt.Sprintf("turn:%s:3478?transport=udp", turnHost),
				fmt.Sprintf("turn:%s:3478?transport=tcp", turnHost),
				fmt.Sprintf("turns:%s:5349?transport=tcp", turnHost),
			},
			Username:   turnUser,
			Credential: turnPass,
		})
	}
	return servers
}
