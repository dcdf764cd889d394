package hwaccel

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
)

var renderNodePattern = regexp.MustCompile(`^renderD\d+$`)

const renderNodeScanTimeout = 2 * time.Second

// RenderNodes lists DRM render nodes on the host. The udev database is
// consulted first; when the crawl yields nothing (containers often
// mount /dev without /sys device metadata) the /dev/dri directory is
// scanned directly.
func RenderNodes() ([]string, error) {
	nodes, err := renderNodesFromUdev(renderNodeScanTimeout)
	if err == nil && len(nodes) > 0 {
		return nodes, nil
	}
	return renderNodesFromDir("/dev/dri")
}

// renderNodesFromUdev crawls existing udev devices for DRM render
// nodes. The crawl is bounded by the timeout so a slow or enormous
// sysfs never stalls discovery.
func renderNodesFromUdev(timeout time.Duration) ([]string, error) {
	queue := make(chan crawler.Device, 16)
	errs := make(chan error, 4)

	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{"DEVNAME": `dri/renderD\d+`},
	})

	quit := crawler.ExistingDevices(queue, errs, rules)

	seen := make(map[string]struct{})
	deadline := time.After(timeout)
	var lastErr error
	for {
		select {
		case device, ok := <-queue:
			if !ok {
				return sortedNodes(seen), lastErr
			}
			if name := device.Env["DEVNAME"]; name != "" {
				seen["/dev/"+name] = struct{}{}
			}
		case err := <-errs:
			lastErr = err
		case <-deadline:
			close(quit)
			return sortedNodes(seen), fmt.Errorf("udev crawl timed out after %s", timeout)
		}
	}
}

func renderNodesFromDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var nodes []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if renderNodePattern.MatchString(entry.Name()) {
			nodes = append(nodes, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(nodes)
	return nodes, nil
}

func sortedNodes(seen map[string]struct{}) []string {
	if len(seen) == 0 {
		return nil
	}
	nodes := make([]string, 0, len(seen))
	for node := range seen {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}
