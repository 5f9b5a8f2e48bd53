// Package digestsearch embeds the message ingestion and relevance search
// pipeline in a Go program, backed by Redis or Valkey with the search module.
//
//	client, err := digestsearch.New(ctx,
//	    digestsearch.WithRedis("localhost:6379", ""),
//	    digestsearch.WithEmbedder(myEmbedder),
//	)
//	report, err := client.Upsert(ctx, []digestsearch.Message{{
//	    MessageID: "M1", WorkspaceID: "T1", ChannelID: "C123",
//	    Text: "deploy is done", TS: "1711000000.001",
//	}})
//	hits, err := client.Search(ctx, digestsearch.SearchRequest{
//	    WorkspaceID: "T1", Query: "deploy",
//	})
//
// Upsert is idempotent: a message is identified by its channel and raw
// timestamp, so ingesting it again overwrites it in place.
package digestsearch
