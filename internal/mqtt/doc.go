// Package mqtt announces automation triggers to an MQTT broker and,
// optionally, accepts spoken-style commands over a command topic.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes a retained birth message ("online") to the
// availability topic and re-subscribes to the command topic when
// commands are enabled. A will message ensures the availability topic
// transitions to "offline" on unexpected disconnects.
//
// Topics, relative to the configured base topic:
//
//	<base>/availability                  online | offline (retained)
//	<base>/automations/<id>/triggered    trigger event JSON
//	<base>/command                       inbound command text or {"text": "..."}
//	<base>/reply                         {"command": "...", "response": "..."}
package mqtt
