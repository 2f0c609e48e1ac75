// Package redis connects to the Redis server that holds per-subscription
// locks when several scheduler replicas share one database.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	checks["redis"] = redis.Healthcheck(client)
package redis
