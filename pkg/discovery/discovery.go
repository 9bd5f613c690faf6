// Package discovery registers service instances in etcd and elects the single
// instance that runs cluster-wide background jobs.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/example/flowershop/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
)

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger,
	}, nil
}

func instanceKey(prefix string, instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s", prefix, instance.Name, instance.Addr())
}

// parseInstance turns a registered "host:port" value back into an instance.
func parseInstance(name, value string) (*ServiceInstance, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid instance address %q: %w", value, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, fmt.Errorf("invalid instance port in %q", value)
	}
	return &ServiceInstance{Name: name, Host: host, Port: port}, nil
}

// Register puts the instance under a lease that is kept alive until ctx ends.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	key := instanceKey(sd.config.Prefix, instance)

	lease, err := sd.client.Grant(ctx, sd.config.LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = sd.client.Put(ctx, key, instance.Addr(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, kaerr := sd.client.KeepAlive(ctx, lease.ID)
	if kaerr != nil {
		return fmt.Errorf("failed to keep alive: %w", kaerr)
	}

	go func() {
		for range ch {
		}
		sd.logger.Info("Service lease keep-alive ended", zap.String("key", key))
	}()

	sd.logger.Info("Service registered", zap.String("key", key))
	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	key := fmt.Sprintf("%s%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	var instances []*ServiceInstance
	for _, kv := range resp.Kvs {
		instance, err := parseInstance(serviceName, string(kv.Value))
		if err != nil {
			sd.logger.Warn("Skipping malformed service entry", zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	_, err := sd.client.Delete(ctx, instanceKey(sd.config.Prefix, instance))
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

// RunAsLeader campaigns for leadership of election and runs fn while this
// instance holds it. fn's context is cancelled when leadership is lost or ctx
// ends; RunAsLeader then campaigns again until ctx is done.
func (sd *ServiceDiscovery) RunAsLeader(ctx context.Context, election, value string, fn func(ctx context.Context)) error {
	for ctx.Err() == nil {
		if err := sd.lead(ctx, election, value, fn); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
	}
	return nil
}

func (sd *ServiceDiscovery) lead(ctx context.Context, election, value string, fn func(ctx context.Context)) error {
	session, err := concurrency.NewSession(sd.client,
		concurrency.WithTTL(int(sd.config.LeaseTTL)),
		concurrency.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open election session: %w", err)
	}
	defer session.Close()

	e := concurrency.NewElection(session, sd.config.Prefix+"elections/"+election)
	if err := e.Campaign(ctx, value); err != nil {
		return err
	}
	sd.logger.Info("Elected leader", zap.String("election", election), zap.String("value", value))

	leaderCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-session.Done():
			sd.logger.Warn("Leadership lost", zap.String("election", election))
			cancel()
		case <-leaderCtx.Done():
		}
	}()

	fn(leaderCtx)

	resignCtx, resignCancel := context.WithTimeout(context.WithoutCancel(ctx), sd.config.DialTimeout)
	defer resignCancel()
	if err := e.Resign(resignCtx); err != nil {
		sd.logger.Warn("Failed to resign leadership", zap.String("election", election), zap.Error(err))
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
