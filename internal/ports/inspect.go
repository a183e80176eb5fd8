package ports

import "context"

type KafkaBroker struct {
	ID           int    `json:"id"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	IsController bool   `json:"isController"`
}

type KafkaCluster struct {
	ClusterID    string        `json:"clusterId"`
	ControllerID int           `json:"controllerBrokerId"`
	Brokers      []KafkaBroker `json:"brokers"`
	Status       string        `json:"status"`
}

type TopicPartition struct {
	Partition    int   `json:"partition"`
	Leader       int   `json:"leader"`
	Replicas     []int `json:"replicas"`
	ISR          []int `json:"isr"`
	BeginOffset  int64 `json:"beginOffset"`
	EndOffset    int64 `json:"endOffset"`
	MessageCount int64 `json:"messageCount"`
}

type TopicInfo struct {
	Topic          string           `json:"topic"`
	PartitionCount int              `json:"partitionCount"`
	Partitions     []TopicPartition `json:"partitions"`
	IsInternal     bool             `json:"isInternal"`
}

type GroupMember struct {
	MemberID   string   `json:"memberId"`
	ClientID   string   `json:"clientId"`
	Host       string   `json:"host"`
	Partitions []string `json:"partitions"`
}

type PartitionLag struct {
	Topic           string `json:"topic"`
	Partition       int    `json:"partition"`
	CommittedOffset int64  `json:"committedOffset"`
	LatestOffset    int64  `json:"latestOffset"`
	Lag             int64  `json:"lag"`
}

type ConsumerGroupInfo struct {
	GroupID     string         `json:"groupId"`
	State       string         `json:"state"`
	Coordinator string         `json:"coordinator"`
	Members     []GroupMember  `json:"members"`
	Partitions  []PartitionLag `json:"partitions"`
	TotalLag    int64          `json:"totalLag"`
}

// KafkaInspector reads cluster, topic and consumer group state for the admin API.
type KafkaInspector interface {
	Cluster(ctx context.Context) (KafkaCluster, error)
	Topic(ctx context.Context, name string) (TopicInfo, error)
	ConsumerGroup(ctx context.Context, groupID string) (ConsumerGroupInfo, error)
	DefaultTopic() string
	DefaultGroup() string
}

type RedisServerInfo struct {
	Version          string `json:"version,omitempty"`
	OS               string `json:"os,omitempty"`
	UptimeDays       string `json:"uptime_days,omitempty"`
	ConnectedClients string `json:"connected_clients,omitempty"`
	UsedMemoryHuman  string `json:"used_memory_human,omitempty"`
	Status           string `json:"status"`
}

type RedisInspector interface {
	ServerInfo(ctx context.Context) (RedisServerInfo, error)
}
