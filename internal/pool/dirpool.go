package pool

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// dirResource adapts an *ldap.Conn to the Resource interface.
type dirResource struct {
	conn *ldap.Conn
}

func (r *dirResource) Healthy() bool {
	if r.conn == nil || r.conn.IsClosing() {
		return false
	}
	// A cheap RootDSE search is the LDAP equivalent of "SELECT 1".
	_, err := r.conn.Search(ldap.NewSearchRequest(
		"", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 1, false,
		"(objectClass=*)", []string{"1.1"}, nil,
	))
	return err == nil
}

func (r *dirResource) Close() error {
	if r.conn == nil {
		return nil
	}
	r.conn.Close()
	return nil
}

// Replicas round-robins read connections across a set of directory
// replica addresses, per spec.md §4.2 ("read traffic is distributed
// across replicas"); writes always target Primary.
type Replicas struct {
	Primary  string
	Replicas []string
	next     uint64
}

// NextReadAddr returns the next address to read from, round-robin over
// Replicas (falling back to Primary if no replicas are configured).
func (r *Replicas) NextReadAddr() string {
	if len(r.Replicas) == 0 {
		return r.Primary
	}
	i := atomic.AddUint64(&r.next, 1)
	return r.Replicas[i%uint64(len(r.Replicas))]
}

// BindConfig carries the parameters needed to establish and
// authenticate a directory connection.
type BindConfig struct {
	Addr         string
	BindDN       string
	BindPassword string
	NetTimeout   time.Duration
}

// DialAndBind connects and simple-binds to an LDAP server, making up
// to 3 dial-and-bind attempts with 100ms linear backoff, per
// spec.md §4.2.
func DialAndBind(ctx context.Context, cfg BindConfig) (*ldap.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		conn, err := ldap.DialURL(
			fmt.Sprintf("ldap://%s", cfg.Addr),
			ldap.DialWithDialer(&net.Dialer{Timeout: cfg.NetTimeout}),
		)
		if err == nil {
			if berr := conn.Bind(cfg.BindDN, cfg.BindPassword); berr == nil {
				return conn, nil
			} else {
				lastErr = berr
				conn.Close()
			}
		} else {
			lastErr = err
		}
		if attempt < 3 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	return nil, fmt.Errorf("directory bind failed after 3 attempts: %w", lastErr)
}

// NewDirectoryFactory builds a Factory that dials and binds a fresh
// LDAP connection to addr for every new pooled resource.
func NewDirectoryFactory(cfg BindConfig) Factory {
	return func(ctx context.Context) (Resource, error) {
		conn, err := DialAndBind(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &dirResource{conn: conn}, nil
	}
}

// LDAPConn extracts the underlying *ldap.Conn from a Handle acquired
// from a directory pool.
func LDAPConn(h *Handle) *ldap.Conn {
	r, ok := h.Resource().(*dirResource)
	if !ok {
		return nil
	}
	return r.conn
}
