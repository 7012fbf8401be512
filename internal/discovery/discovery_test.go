package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/queue/memqueue"
	"github.com/rohmanhakim/crawlcore/internal/statestore/memstore"
	"github.com/rohmanhakim/crawlcore/internal/urlnorm"
)

func TestProcessDomainEnqueuesSitemapURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(`<?xml version="1.0"?><urlset><url><loc>http://` + r.Host + `/a</loc></url><url><loc>http://` + r.Host + `/b</loc></url></urlset>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := memstore.NewMemStore()
	crawlQueue := memqueue.New[queue.CrawlMessage](5)
	coordinator := NewCoordinator(nil, urlnorm.NewDefaultNormalizer(), store, crawlQueue, 0)

	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)

	msg := queue.NewDiscoveryMessage(serverURL.Host, "http://"+serverURL.Host+"/")
	admitted, discoveryErr := coordinator.ProcessDomain(context.Background(), msg)
	require.Nil(t, discoveryErr)
	require.Equal(t, 2, admitted)

	depth, err := crawlQueue.ApproxDepth(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, depth.ApproxMessages)
}

func TestProcessDomainBackpressure(t *testing.T) {
	store := memstore.NewMemStore()
	crawlQueue := memqueue.New[queue.CrawlMessage](5)
	require.NoError(t, crawlQueue.Send(context.Background(), queue.NewCrawlMessage("h", "https://example.com", "example.com", 0)))

	coordinator := NewCoordinator(nil, urlnorm.NewDefaultNormalizer(), store, crawlQueue, 1)
	msg := queue.NewDiscoveryMessage("example.com", "https://example.com/")

	_, discoveryErr := coordinator.ProcessDomain(context.Background(), msg)
	require.Equal(t, ErrBackpressure, discoveryErr)
}
