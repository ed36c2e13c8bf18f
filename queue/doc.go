// Package queue distributes ingestion jobs over Redis.
//
// Producers push WorkItems onto a list; workers pop them, run the pipeline,
// store the full ingest.Result under a key with a TTL, and publish a short
// Result on the batch's pub/sub channel.
//
// # Redis Key Schema
//
//   - orbit:ingest:queue - List of pending work items (LPUSH/BRPOP)
//   - orbit:results:<jobID> - Pub/Sub channel for a batch's results
//   - orbit:result:<jobID>:<index> - Full ingest.Result as JSON
//   - orbit:worker:<id>:health - Heartbeat string with a TTL
//
// # Usage
//
// Dispatching a batch and waiting for it:
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	results, err := queue.Dispatch(ctx, client, queue.DefaultQueue, jobs)
//
// Running a worker:
//
//	w := queue.NewWorker(client, pipeline, queue.WithConcurrency(4))
//	err := w.Run(ctx) // returns when ctx is cancelled
package queue
