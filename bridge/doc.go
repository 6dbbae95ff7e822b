// Package bridge is the boundary between the alert engine and the chat
// platform it delivers to. The engine only sees the small interfaces defined
// here; concrete transports (the webhook HTTP client and the websocket
// gateway client) live alongside them.
package bridge
