// Package incsearch embeds the incremental search engine in a Go process:
// a groupware item store plus server-side search sessions that deliver
// results incrementally as ephemeral indexes populate.
//
//	client, _ := incsearch.New(incsearch.WithBolt("incsearch.db"))
//	defer client.Close()
//
//	client.PutItem(ctx, "contacts", "c1", map[string]string{
//	    "display_name":    "Jane Doe",
//	    "email_address_1": "jane@example.com",
//	})
//
//	res, _ := client.Search(ctx, incsearch.SearchRequest{
//	    User:     "alice",
//	    View:     "contacts-main",
//	    Schema:   "contacts",
//	    FreeText: "jane",
//	    Folders:  []string{"contacts"},
//	})
//	for res.State == incsearch.StateRunning {
//	    res, _ = client.UpdateSearch(ctx, "alice", "contacts-main", 0)
//	}
//	client.StopSearch(ctx, "alice", "contacts-main")
package incsearch
