package publishers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported sink types.
const (
	TypeHTTP      = "http"
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeGCPPubSub = "gcp_pubsub"
)

// Event fields that broker sinks can copy onto message attributes.
const (
	AttrBounceID = "bounce_id"
	AttrTitle    = "title"
	AttrFriend   = "friend"
)

const defaultHTTPTimeoutSeconds = 5

var knownAttributes = map[string]bool{AttrBounceID: true, AttrTitle: true, AttrFriend: true}

// PublisherConfig declares one notification sink for accepted bounces.
//
// IncludeFriend (default true) controls whether the invited friend leaves the
// process at all. Attributes lists event fields mirrored as message
// attributes on broker sinks (default: bounce_id).
type PublisherConfig struct {
	ID            string                    `json:"id" yaml:"id"`
	Type          string                    `json:"type" yaml:"type"`
	Enabled       *bool                     `json:"enabled" yaml:"enabled"`
	IncludeFriend *bool                     `json:"include_friend" yaml:"include_friend"`
	Attributes    []string                  `json:"attributes" yaml:"attributes"`
	HTTP          *HTTPPublisherConfig      `json:"http" yaml:"http"`
	SQS           *SQSPublisherConfig       `json:"sqs" yaml:"sqs"`
	SNS           *SNSPublisherConfig       `json:"sns" yaml:"sns"`
	GCPPubSub     *GCPPubSubPublisherConfig `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

// HTTPPublisherConfig points at a webhook that receives the event as a JSON POST.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SQSPublisherConfig targets a queue. Queues whose URL ends in .fifo get
// per-bounce message groups and deduplication ids.
type SQSPublisherConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
}

// SNSPublisherConfig targets a topic. FIFO topics (.fifo suffix) are grouped per bounce.
type SNSPublisherConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	Region   string `json:"region" yaml:"region"`
}

// GCPPubSubPublisherConfig targets a Pub/Sub topic.
type GCPPubSubPublisherConfig struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	Topic     string `json:"topic" yaml:"topic"`
}

// EnabledValue reports the enabled flag, defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool { return cfg.Enabled == nil || *cfg.Enabled }

// FriendAllowed reports whether the friend may be sent to this sink, defaulting to true.
func (cfg PublisherConfig) FriendAllowed() bool {
	return cfg.IncludeFriend == nil || *cfg.IncludeFriend
}

// ConfigRegistry is the immutable set of sinks read from a publishers file.
type ConfigRegistry struct {
	ordered []PublisherConfig
	byID    map[string]int
}

type sinkFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// LoadRegistry reads and validates a publishers file. Files ending in .json
// are decoded as JSON, everything else as YAML; unknown keys are rejected.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var file sinkFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&file)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file %s: %w", filepath.Base(path), err)
	}

	return newConfigRegistry(file.Publishers)
}

func newConfigRegistry(cfgs []PublisherConfig) (*ConfigRegistry, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("publishers file declares no sinks")
	}
	reg := &ConfigRegistry{byID: make(map[string]int, len(cfgs))}
	for i, cfg := range cfgs {
		cfg = cfg.normalized()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := reg.byID[cfg.ID]; dup {
			return nil, fmt.Errorf("publishers[%d]: duplicate id %q", i, cfg.ID)
		}
		reg.byID[cfg.ID] = len(reg.ordered)
		reg.ordered = append(reg.ordered, cfg)
	}
	return reg, nil
}

// normalized lowercases the type, fills defaults, and trims every string the
// sinks dereference.
func (cfg PublisherConfig) normalized() PublisherConfig {
	trim := strings.TrimSpace
	cfg.ID = trim(cfg.ID)
	cfg.Type = strings.ToLower(trim(cfg.Type))

	attrs := make([]string, 0, len(cfg.Attributes))
	for _, a := range cfg.Attributes {
		if a = strings.ToLower(trim(a)); a != "" {
			attrs = append(attrs, a)
		}
	}
	if len(attrs) == 0 && cfg.Type != TypeHTTP {
		attrs = []string{AttrBounceID}
	}
	cfg.Attributes = attrs

	switch {
	case cfg.HTTP != nil:
		h := *cfg.HTTP
		h.URL = trim(h.URL)
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = defaultHTTPTimeoutSeconds
		}
		headers := make(map[string]string, len(h.Headers))
		for k, v := range h.Headers {
			if k, v = trim(k), trim(v); k != "" && v != "" {
				headers[k] = v
			}
		}
		h.Headers = headers
		cfg.HTTP = &h
	case cfg.SQS != nil:
		q := *cfg.SQS
		q.QueueURL, q.Region = trim(q.QueueURL), trim(q.Region)
		cfg.SQS = &q
	case cfg.SNS != nil:
		n := *cfg.SNS
		n.TopicARN, n.Region = trim(n.TopicARN), trim(n.Region)
		cfg.SNS = &n
	case cfg.GCPPubSub != nil:
		g := *cfg.GCPPubSub
		g.ProjectID, g.Topic = trim(g.ProjectID), trim(g.Topic)
		cfg.GCPPubSub = &g
	}
	return cfg
}

// Validate enforces the rules a sink must meet to carry bounce events.
func (cfg PublisherConfig) Validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	for _, a := range cfg.Attributes {
		if !knownAttributes[a] {
			return fmt.Errorf("sink %q: unknown attribute %q", cfg.ID, a)
		}
		if a == AttrFriend && !cfg.FriendAllowed() {
			return fmt.Errorf("sink %q: friend attribute requested but include_friend is false", cfg.ID)
		}
	}

	switch cfg.Type {
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("sink %q: http block is required", cfg.ID)
		}
		if len(cfg.Attributes) > 0 {
			return fmt.Errorf("sink %q: http sinks carry the event in the body and take no attributes", cfg.ID)
		}
		u, err := url.Parse(cfg.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("sink %q: http.url must be an absolute http(s) url", cfg.ID)
		}
	case TypeSQS:
		if cfg.SQS == nil || cfg.SQS.QueueURL == "" || cfg.SQS.Region == "" {
			return fmt.Errorf("sink %q: sqs.uri and sqs.region are required", cfg.ID)
		}
	case TypeSNS:
		if cfg.SNS == nil || cfg.SNS.Region == "" || !strings.HasPrefix(cfg.SNS.TopicARN, "arn:") {
			return fmt.Errorf("sink %q: sns.topic_arn (an arn) and sns.region are required", cfg.ID)
		}
	case TypeGCPPubSub:
		if cfg.GCPPubSub == nil || cfg.GCPPubSub.ProjectID == "" || cfg.GCPPubSub.Topic == "" {
			return fmt.Errorf("sink %q: gcp_pubsub.project_id and gcp_pubsub.topic are required", cfg.ID)
		}
	case "":
		return fmt.Errorf("sink %q: type is required", cfg.ID)
	default:
		return fmt.Errorf("sink %q: unknown type %q", cfg.ID, cfg.Type)
	}
	return nil
}

// All returns every declared sink in file order.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}
	return append([]PublisherConfig(nil), r.ordered...)
}

// Enabled returns the sinks that should be built.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range r.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// ByID looks a sink up by id.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}
	i, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return PublisherConfig{}, false
	}
	return r.ordered[i], true
}
