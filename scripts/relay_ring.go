package main

/* relay_ring.go runs a full decomposition in-process: every rank is a
goroutine on a comm.Mesh, particles get random kicks each step, and the
migration and ghost engines keep the ranks consistent. Useful as a smoke
test and as a load-balance probe for a candidate rank grid.

Usage:
    go run relay_ring.go config.txt [checkpoint_dir]
*/

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path"
	"sync"

	"github.com/phil-mansfield/remora/lib/comm"
	"github.com/phil-mansfield/remora/lib/config"
	"github.com/phil-mansfield/remora/lib/geom"
	"github.com/phil-mansfield/remora/lib/ghost"
	"github.com/phil-mansfield/remora/lib/migrate"
	"github.com/phil-mansfield/remora/lib/parallel"
	"github.com/phil-mansfield/remora/lib/snapshot"
	"github.com/phil-mansfield/remora/lib/stats"
	"github.com/phil-mansfield/remora/lib/store"
)

const particlesPerRank = 1000

func main() {
	cfg := config.DefaultFile()
	if len(os.Args) >= 2 {
		var err error
		cfg, err = config.Read(os.Args[1])
		if err != nil {
			log.Fatalf("Could not read %s: %v", os.Args[1], err)
		}
	}
	checkDir := ""
	if len(os.Args) >= 3 {
		checkDir = os.Args[2]
	}

	parallel.Set(cfg.Run.Threads)

	d := cfg.Decomposition
	box, err := geom.NewBox(float32(d.Lx), float32(d.Ly), float32(d.Lz))
	if err != nil {
		log.Fatal(err)
	}
	dec, err := geom.NewDecomp(box, [3]int{d.Nx, d.Ny, d.Nz})
	if err != nil {
		log.Fatal(err)
	}

	mesh, err := comm.NewMesh(dec.Ranks())
	if err != nil {
		log.Fatal(err)
	}

	nGlobal := particlesPerRank * dec.Ranks()
	counts := make([]int, dec.Ranks())
	ghosts := make([]int, dec.Ranks())
	migrated := make([][geom.NDir]int, dec.Ranks())

	wg := sync.WaitGroup{}
	wg.Add(dec.Ranks())
	for rank := 0; rank < dec.Ranks(); rank++ {
		go func(rank int) {
			defer wg.Done()

			tp, err := mesh.Transport(rank)
			if err != nil {
				log.Fatal(err)
			}

			st := store.New(nGlobal)
			seed(st, dec, rank, cfg.Run.Seed)

			mig := migrate.New(dec, tp, st)
			gh, err := ghost.New(dec, tp, st, float32(d.GhostWidth), nil)
			if err != nil {
				log.Fatal(err)
			}

			rng := rand.New(rand.NewSource(cfg.Run.Seed + int64(rank)))
			for step := 0; step < cfg.Run.Steps; step++ {
				gh.Teardown()
				kick(st, dec, rng)
				if err := mig.Migrate(); err != nil {
					log.Fatal(err)
				}
				if err := gh.Refresh(); err != nil {
					log.Fatal(err)
				}
			}

			counts[rank] = st.NOwned()
			ghosts[rank] = st.NGhost()
			migrated[rank] = mig.Sent

			if checkDir != "" {
				fname := path.Join(checkDir,
					fmt.Sprintf("remora.%d.snap", rank))
				if err := snapshot.Write(fname, dec, rank, st); err != nil {
					log.Fatal(err)
				}
			}
		}(rank)
	}
	wg.Wait()

	log.Println("load:", stats.Load(counts))
	log.Println("ghosts:", stats.Load(ghosts))
	log.Println("migration:", stats.Volumes(migrated...))
}

// seed fills the rank's store with particles placed uniformly in its
// sub-box. Tags are carved out of the global tag space in contiguous
// per-rank ranges.
func seed(st *store.Store, dec *geom.Decomp, rank int, seedVal int64) {
	rng := rand.New(rand.NewSource(seedVal + 7919*int64(rank)))
	sub := dec.SubBox(rank)

	for i := 0; i < particlesPerRank; i++ {
		rec := store.Record{
			Charge:   0,
			Diameter: 1,
			Orient:   [4]float32{1, 0, 0, 0},
			Tag:      uint32(rank*particlesPerRank + i),
		}
		for dim := 0; dim < 3; dim++ {
			w := sub.Width(dim)
			rec.PosType[dim] = sub.Lo[dim] + w*rng.Float32()
		}
		if err := st.Append(rec); err != nil {
			log.Fatal(err)
		}
	}
}

// kick displaces every owned particle by up to a tenth of the smallest
// sub-box width, which keeps every crossing within one domain per step.
func kick(st *store.Store, dec *geom.Decomp, rng *rand.Rand) {
	sub := dec.SubBox(0)
	w := sub.Width(0)
	for dim := 1; dim < 3; dim++ {
		if sub.Width(dim) < w {
			w = sub.Width(dim)
		}
	}
	amp := w / 10

	for i := 0; i < st.NOwned(); i++ {
		for dim := 0; dim < 3; dim++ {
			st.PosType[i][dim] += amp * (2*rng.Float32() - 1)
		}
	}
}
