// Package apiclient is the main entry point for querying a JSON:API server.
//
//	client, err := apiclient.New(ctx, &jsonapi.Config{
//	  APIEndpoint: "https://example.com/api",
//	  AccessToken: token,
//	  Cache:       jsonapi.DefaultCacheConfig(),
//	})
//	if err != nil {
//	  return err
//	}
//	defer client.Close()
//
//	posts, err := client.Resource("posts")
//	if err != nil {
//	  return err
//	}
//
//	doc, err := posts.With("author").OrderByDesc("published_at").Paginate(ctx, 10, 1)
//
// Every builder returned by Resource shares the client's transport: bearer
// authentication (static token or OAuth2 client credentials), retries with
// backoff for 429 and 5xx responses, custom headers, per-endpoint metrics and
// the optional response cache.
package apiclient
