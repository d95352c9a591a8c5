// Package redis provides Redis connection management for the control
// plane. The client it returns backs the feature snapshot cache in
// pkg/feature.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	cache := feature.NewCache(client, registry)
package redis
