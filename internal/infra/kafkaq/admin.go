package kafkaq

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"taskbroker/internal/config"
	"taskbroker/internal/ports"
	"time"

	"github.com/segmentio/kafka-go"
)

var _ ports.KafkaInspector = (*Inspector)(nil)

const adminTimeout = 5 * time.Second

type AdminClient interface {
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
	ListOffsets(ctx context.Context, req *kafka.ListOffsetsRequest) (*kafka.ListOffsetsResponse, error)
	OffsetFetch(ctx context.Context, req *kafka.OffsetFetchRequest) (*kafka.OffsetFetchResponse, error)
	DescribeGroups(ctx context.Context, req *kafka.DescribeGroupsRequest) (*kafka.DescribeGroupsResponse, error)
	FindCoordinator(ctx context.Context, req *kafka.FindCoordinatorRequest) (*kafka.FindCoordinatorResponse, error)
}

var _ AdminClient = (*kafka.Client)(nil)

// Inspector answers admin queries about the task topic and consumer group.
type Inspector struct {
	C         AdminClient
	TopicName string
	GroupID   string
}

func NewInspector(cfg config.Kafka) *Inspector {
	return &Inspector{
		C:         &kafka.Client{Addr: kafka.TCP(cfg.Brokers...), Timeout: adminTimeout},
		TopicName: cfg.Topic,
		GroupID:   cfg.GroupID,
	}
}

func (i *Inspector) DefaultTopic() string { return i.TopicName }
func (i *Inspector) DefaultGroup() string { return i.GroupID }

func (i *Inspector) Cluster(ctx context.Context) (ports.KafkaCluster, error) {
	md, err := i.C.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return ports.KafkaCluster{Status: "ERROR"}, fmt.Errorf("describe cluster: %w", err)
	}

	out := ports.KafkaCluster{
		ClusterID:    md.ClusterID,
		ControllerID: md.Controller.ID,
		Brokers:      make([]ports.KafkaBroker, 0, len(md.Brokers)),
		Status:       "CONNECTED",
	}
	for _, b := range md.Brokers {
		out.Brokers = append(out.Brokers, ports.KafkaBroker{
			ID:           b.ID,
			Host:         b.Host,
			Port:         b.Port,
			IsController: b.ID == md.Controller.ID,
		})
	}
	sort.Slice(out.Brokers, func(a, b int) bool { return out.Brokers[a].ID < out.Brokers[b].ID })
	return out, nil
}

func (i *Inspector) Topic(ctx context.Context, name string) (ports.TopicInfo, error) {
	md, err := i.C.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{name}})
	if err != nil {
		return ports.TopicInfo{}, fmt.Errorf("describe topic %s: %w", name, err)
	}

	var topic *kafka.Topic
	for n := range md.Topics {
		if md.Topics[n].Name == name {
			topic = &md.Topics[n]
			break
		}
	}
	if topic == nil {
		return ports.TopicInfo{}, fmt.Errorf("describe topic %s: not found", name)
	}
	if topic.Error != nil {
		return ports.TopicInfo{}, fmt.Errorf("describe topic %s: %w", name, topic.Error)
	}

	reqs := make([]kafka.OffsetRequest, 0, 2*len(topic.Partitions))
	for _, p := range topic.Partitions {
		reqs = append(reqs, kafka.FirstOffsetOf(p.ID), kafka.LastOffsetOf(p.ID))
	}
	offsets, err := i.C.ListOffsets(ctx, &kafka.ListOffsetsRequest{Topics: map[string][]kafka.OffsetRequest{name: reqs}})
	if err != nil {
		return ports.TopicInfo{}, fmt.Errorf("list offsets for %s: %w", name, err)
	}
	byPartition := map[int]kafka.PartitionOffsets{}
	for _, po := range offsets.Topics[name] {
		byPartition[po.Partition] = po
	}

	out := ports.TopicInfo{
		Topic:          name,
		PartitionCount: len(topic.Partitions),
		Partitions:     make([]ports.TopicPartition, 0, len(topic.Partitions)),
		IsInternal:     topic.Internal,
	}
	for _, p := range topic.Partitions {
		po := byPartition[p.ID]
		out.Partitions = append(out.Partitions, ports.TopicPartition{
			Partition:    p.ID,
			Leader:       p.Leader.ID,
			Replicas:     brokerIDs(p.Replicas),
			ISR:          brokerIDs(p.Isr),
			BeginOffset:  po.FirstOffset,
			EndOffset:    po.LastOffset,
			MessageCount: po.LastOffset - po.FirstOffset,
		})
	}
	sort.Slice(out.Partitions, func(a, b int) bool { return out.Partitions[a].Partition < out.Partitions[b].Partition })
	return out, nil
}

// ConsumerGroup reports members, committed offsets and lag for every
// partition the group has committed to.
func (i *Inspector) ConsumerGroup(ctx context.Context, groupID string) (ports.ConsumerGroupInfo, error) {
	out := ports.ConsumerGroupInfo{GroupID: groupID, Coordinator: "N/A", Members: []ports.GroupMember{}}

	groups, err := i.C.DescribeGroups(ctx, &kafka.DescribeGroupsRequest{GroupIDs: []string{groupID}})
	if err != nil {
		return out, fmt.Errorf("describe group %s: %w", groupID, err)
	}
	for _, g := range groups.Groups {
		if g.GroupID != groupID {
			continue
		}
		if g.Error != nil {
			return out, fmt.Errorf("describe group %s: %w", groupID, g.Error)
		}
		out.State = g.GroupState
		for _, m := range g.Members {
			member := ports.GroupMember{MemberID: m.MemberID, ClientID: m.ClientID, Host: m.ClientHost, Partitions: []string{}}
			for _, t := range m.MemberAssignments.Topics {
				for _, p := range t.Partitions {
					member.Partitions = append(member.Partitions, t.Topic+"-"+strconv.Itoa(p))
				}
			}
			out.Members = append(out.Members, member)
		}
	}

	if fc, err := i.C.FindCoordinator(ctx, &kafka.FindCoordinatorRequest{Key: groupID, KeyType: kafka.CoordinatorKeyTypeConsumer}); err == nil && fc.Error == nil && fc.Coordinator != nil {
		out.Coordinator = net.JoinHostPort(fc.Coordinator.Host, strconv.Itoa(fc.Coordinator.Port))
	}

	committed, err := i.C.OffsetFetch(ctx, &kafka.OffsetFetchRequest{GroupID: groupID})
	if err != nil {
		return out, fmt.Errorf("fetch offsets for %s: %w", groupID, err)
	}
	if committed.Error != nil {
		return out, fmt.Errorf("fetch offsets for %s: %w", groupID, committed.Error)
	}

	latestReq := map[string][]kafka.OffsetRequest{}
	for topic, parts := range committed.Topics {
		for _, p := range parts {
			if p.CommittedOffset >= 0 {
				latestReq[topic] = append(latestReq[topic], kafka.LastOffsetOf(p.Partition))
			}
		}
	}
	out.Partitions = []ports.PartitionLag{}
	if len(latestReq) == 0 {
		return out, nil
	}

	latest, err := i.C.ListOffsets(ctx, &kafka.ListOffsetsRequest{Topics: latestReq})
	if err != nil {
		return out, fmt.Errorf("list offsets for %s: %w", groupID, err)
	}
	ends := map[string]map[int]int64{}
	for topic, pos := range latest.Topics {
		ends[topic] = map[int]int64{}
		for _, po := range pos {
			ends[topic][po.Partition] = po.LastOffset
		}
	}

	for topic, parts := range committed.Topics {
		for _, p := range parts {
			if p.CommittedOffset < 0 {
				continue
			}
			end := ends[topic][p.Partition]
			lag := max(end-p.CommittedOffset, 0)
			out.TotalLag += lag
			out.Partitions = append(out.Partitions, ports.PartitionLag{
				Topic:           topic,
				Partition:       p.Partition,
				CommittedOffset: p.CommittedOffset,
				LatestOffset:    end,
				Lag:             lag,
			})
		}
	}
	sort.Slice(out.Partitions, func(a, b int) bool {
		pa, pb := out.Partitions[a], out.Partitions[b]
		if pa.Topic != pb.Topic {
			return pa.Topic < pb.Topic
		}
		return pa.Partition < pb.Partition
	})
	return out, nil
}

func brokerIDs(bs []kafka.Broker) []int {
	ids := make([]int, 0, len(bs))
	for _, b := range bs {
		ids = append(ids, b.ID)
	}
	return ids
}
