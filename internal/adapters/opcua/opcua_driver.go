package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/machinelink/internal/ports"
)

// Config captures the session options used for every endpoint the driver talks to.
type Config struct {
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode" split_words:"true"`
	SecurityPolicy  string        `yaml:"security_policy" split_words:"true"`
	ApplicationName string        `yaml:"application_name" split_words:"true"`
	RequestTimeout  time.Duration `yaml:"request_timeout" split_words:"true"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "machinelink"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Password != "" && c.Username == "" {
		return errors.New("password set without username")
	}
	return nil
}

// Driver reads machine values from an OPC UA server. Commands are node ID
// lists: the check command names one node whose value is returned as text,
// the readout command names the comma separated nodes read as one sample.
// OPC UA needs no arming, so ArmMonitoring only verifies the listed nodes parse.
type Driver struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*opcua.Client
}

func NewDriver(cfg Config) (*Driver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		cfg:     cfg,
		clients: make(map[string]*opcua.Client),
	}, nil
}

func (d *Driver) Check(ctx context.Context, endpoint string, command []byte) ([]byte, error) {
	ids, err := parseNodeList(command)
	if err != nil {
		return nil, err
	}
	values, err := d.read(ctx, endpoint, ids[:1])
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprint(values[0].Value())), nil
}

func (d *Driver) ArmMonitoring(_ context.Context, _ string, command []byte) ([]byte, error) {
	if len(command) == 0 {
		return nil, nil
	}
	if _, err := parseNodeList(command); err != nil {
		return nil, err
	}
	return []byte("OK"), nil
}

func (d *Driver) ReadSamples(ctx context.Context, endpoint string, command []byte) ([]float64, error) {
	ids, err := parseNodeList(command)
	if err != nil {
		return nil, err
	}
	values, err := d.read(ctx, endpoint, ids)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		fv, ok := variantToFloat(v)
		if !ok {
			return nil, fmt.Errorf("opcua: node %s has non-numeric value %T", ids[i], v.Value())
		}
		out[i] = fv
	}
	return out, nil
}

// Close ends every open session.
func (d *Driver) Close() error {
	d.mu.Lock()
	clients := d.clients
	d.clients = make(map[string]*opcua.Client)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	for _, c := range clients {
		if e := c.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (d *Driver) read(ctx context.Context, endpoint string, ids []*ua.NodeID) ([]*ua.Variant, error) {
	client, err := d.client(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	nodes := make([]*ua.ReadValueID, len(ids))
	for i, id := range ids {
		nodes[i] = &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue}
	}

	rctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	resp, err := client.Read(rctx, &ua.ReadRequest{
		NodesToRead:        nodes,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	})
	if err != nil {
		d.drop(endpoint)
		return nil, fmt.Errorf("opcua read %s: %w", endpoint, err)
	}
	if len(resp.Results) != len(ids) {
		return nil, fmt.Errorf("opcua read %s: %d results for %d nodes", endpoint, len(resp.Results), len(ids))
	}

	out := make([]*ua.Variant, len(ids))
	for i, res := range resp.Results {
		if res.Status != ua.StatusOK {
			return nil, fmt.Errorf("opcua read node %s: %s", ids[i], res.Status)
		}
		out[i] = res.Value
	}
	return out, nil
}

func (d *Driver) client(ctx context.Context, endpoint string) (*opcua.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[endpoint]; ok {
		return c, nil
	}

	c, err := opcua.NewClient(endpoint, d.buildClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	d.clients[endpoint] = c
	return c, nil
}

func (d *Driver) drop(endpoint string) {
	d.mu.Lock()
	c, ok := d.clients[endpoint]
	delete(d.clients, endpoint)
	d.mu.Unlock()
	if ok {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Close(ctx)
	}
}

func (d *Driver) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(d.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(d.cfg.SecurityPolicy)),
		opcua.ApplicationName(d.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if d.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(d.cfg.Username, d.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func parseNodeList(command []byte) ([]*ua.NodeID, error) {
	raw := strings.TrimSpace(string(command))
	if raw == "" {
		return nil, errors.New("opcua: empty node list")
	}
	parts := strings.Split(raw, ",")
	ids := make([]*ua.NodeID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !hasIdentifierType(p) {
			return nil, fmt.Errorf("opcua: node id %q has no identifier type", p)
		}
		id, err := ua.ParseNodeID(p)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// hasIdentifierType reports whether s carries an explicit i=, s=, g= or b=
// identifier after an optional ns= or nsu= namespace segment. ua.ParseNodeID
// treats any other text as a string identifier in namespace 0.
func hasIdentifierType(s string) bool {
	if strings.HasPrefix(s, "ns=") || strings.HasPrefix(s, "nsu=") {
		i := strings.IndexByte(s, ';')
		if i < 0 {
			return false
		}
		s = s[i+1:]
	}
	for _, prefix := range []string{"i=", "s=", "g=", "b="} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return true
		}
	}
	return false
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.DeviceDriver = (*Driver)(nil)
