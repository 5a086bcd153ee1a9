// Package pagination provides cursor pagination over Fjord list endpoints:
// a serial Iterator and a bounded concurrent PartitionReader.
//
// Fjord list endpoints return pages as {"items": [...], "nextCursor": "..."}
// where an absent nextCursor means the listing is exhausted. Endpoints that
// support server-side key-range splitting additionally expose a parallel
// cursors call that returns N independent cursor streams over disjoint
// slices of the collection.
//
// Example serial usage:
//
//	it := pagination.NewIterator(fetchPage, pagination.IteratorConfig{Limit: 1000})
//	for {
//		item, ok, err := it.Next(ctx)
//		if err != nil || !ok {
//			break
//		}
//		// use item
//	}
//
// Example parallel usage:
//
//	reader, err := pagination.ReadPartitions(ctx, splitCursors, fetchPage, pagination.PartitionConfig{
//		Partitions: 8,
//		MaxWorkers: 10,
//		Limit:      1_000_000,
//	})
//	for {
//		chunk, ok, err := reader.Next(ctx)
//		if err != nil || !ok {
//			break
//		}
//		// use chunk (cross-partition order is arbitrary)
//	}
//
// The partition reader:
//   - asks the server for P cursors over disjoint key ranges
//   - runs one fetch loop per partition, each owning its cursor
//   - bounds unconsumed chunks to P via randomized-backoff producer sleeps,
//     capping client memory at O(P x page size)
//   - trims the final chunk to the configured limit and stops all
//     partitions cooperatively once the limit is reached
//   - preserves page order within a partition, none across partitions
package pagination
