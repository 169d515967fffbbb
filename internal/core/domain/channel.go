package domain

// ChannelState is the lifecycle state of the real-time notification channel.
type ChannelState string

const (
	ChannelDisconnected ChannelState = "disconnected"
	ChannelConnecting   ChannelState = "connecting"
	ChannelConnected    ChannelState = "connected"
)

// TopicKind distinguishes the per-user topic from the role-scoped one.
type TopicKind string

const (
	TopicPrivate TopicKind = "private"
	TopicShared  TopicKind = "shared"
)

// ChannelMessage is one frame delivered on a subscribed topic. Kind and
// Owner are stamped by the channel manager: Owner is the identity the
// connection was opened for, so frames from a previous session can be told
// apart from current ones.
type ChannelMessage struct {
	Topic string
	Kind  TopicKind
	Owner ID
	Body  []byte
}

// ChannelStatus is a point-in-time view of the channel manager.
type ChannelStatus struct {
	State         ChannelState `json:"state"`
	Attempts      int          `json:"attempts"`
	Subscriptions []string     `json:"subscriptions"`
	LastError     string       `json:"last_error,omitempty"`
}

// RoleTopicMessage is the envelope used on shared topics. Payload is left
// undecoded because shared-topic messages carry no business meaning here.
type RoleTopicMessage struct {
	Type      string `json:"type"`
	SenderID  string `json:"senderId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}
