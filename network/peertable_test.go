package network

import (
	"strconv"
	"testing"
	"time"
)

func TestPeerTableRejectsReservedAddresses(t *testing.T) {
	tbl := NewPeerTable()
	cases := []string{"0.0.0.0:7075", "127.0.0.1:7075", "10.0.0.5:7075", "192.0.2.1:7075", "224.0.0.1:7075"}
	for _, endpoint := range cases {
		if tbl.Insert(&Peer{Endpoint: endpoint}) {
			t.Fatalf("Insert(%s) = true, want rejected as reserved", endpoint)
		}
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tbl.Len())
	}
}

func TestPeerTableEnforcesPerIPCap(t *testing.T) {
	tbl := NewPeerTable()
	admitted := 0
	for i := 0; i < perIPCap+5; i++ {
		endpoint := "8.8.8.8:" + portOffset(i)
		if tbl.Insert(&Peer{Endpoint: endpoint}) {
			admitted++
		}
	}
	if admitted != perIPCap {
		t.Fatalf("admitted = %d, want exactly the per-IP cap %d", admitted, perIPCap)
	}
}

func TestPeerTablePurgeStaleRemovesOldPeers(t *testing.T) {
	tbl := NewPeerTable()
	now := time.Now()
	tbl.Insert(&Peer{Endpoint: "8.8.8.8:7075", LastContact: now.Add(-10 * time.Minute)})
	tbl.Insert(&Peer{Endpoint: "8.8.4.4:7075", LastContact: now})

	removed := tbl.PurgeStale(now)
	if len(removed) != 1 || removed[0] != "8.8.8.8:7075" {
		t.Fatalf("PurgeStale removed = %v, want only the stale peer", removed)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() after purge = %d, want 1", tbl.Len())
	}
}

func TestPeerTableTopByWeightOrdersDescending(t *testing.T) {
	tbl := NewPeerTable()
	tbl.Insert(&Peer{Endpoint: "8.8.8.8:7075", RepWeight: 10})
	tbl.Insert(&Peer{Endpoint: "8.8.4.4:7075", RepWeight: 100})
	tbl.Insert(&Peer{Endpoint: "1.1.1.1:7075", RepWeight: 50})

	top := tbl.TopByWeight(2)
	if len(top) != 2 || top[0].Endpoint != "8.8.4.4:7075" || top[1].Endpoint != "1.1.1.1:7075" {
		t.Fatalf("TopByWeight(2) = %+v, want [8.8.4.4 (100), 1.1.1.1 (50)]", top)
	}
}

func TestFanoutSizeIsCeilSqrt(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 2, 4: 2, 5: 3, 9: 3, 10: 4, 100: 10, 101: 11}
	for n, want := range cases {
		if got := fanoutSize(n); got != want {
			t.Fatalf("fanoutSize(%d) = %d, want %d", n, got, want)
		}
	}
}

func portOffset(i int) string {
	return strconv.Itoa(10000 + i)
}
