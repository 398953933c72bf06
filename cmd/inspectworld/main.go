package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/tilevox/tilevox/export/world"
	"github.com/tilevox/tilevox/export/world/mcdb"
)

func main() {
	chunkFlag := flag.String("chunk", "", "dump the material column counts of the chunk at \"x,z\"")
	dimFlag := flag.Int("dim", 0, "dimension ID to inspect")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspectworld [flags] <world directory>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	p, err := mcdb.Config{Log: slog.Default()}.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer p.Close()

	if *chunkFlag != "" {
		var x, z int32
		if _, err := fmt.Sscanf(*chunkFlag, "%d,%d", &x, &z); err != nil {
			fmt.Fprintln(os.Stderr, "invalid -chunk value:", err)
			os.Exit(2)
		}
		dumpChunk(p, *dimFlag, world.ChunkPos{x, z})
		return
	}

	counts := map[int]int{}
	err = p.Keys(func(dim int, pos world.ChunkPos) {
		counts[dim]++
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	dims := make([]int, 0, len(counts))
	for dim := range counts {
		dims = append(dims, dim)
	}
	sort.Ints(dims)
	for _, dim := range dims {
		fmt.Printf("dimension %d: %d chunks\n", dim, counts[dim])
	}
}

func dumpChunk(p *mcdb.Provider, dim int, pos world.ChunkPos) {
	c, ok, err := p.LoadChunk(dim, pos)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no chunk at %d,%d in dimension %d\n", pos.X(), pos.Z(), dim)
		os.Exit(1)
	}
	counts := map[world.Material]int{}
	for y := c.MinHeight(); y < c.MaxHeight(); y++ {
		for z := 0; z < 16; z++ {
			for x := 0; x < 16; x++ {
				counts[c.Material(x, y, z)]++
			}
		}
	}
	materials := make([]world.Material, 0, len(counts))
	for m := range counts {
		materials = append(materials, m)
	}
	sort.Slice(materials, func(i, j int) bool { return counts[materials[i]] > counts[materials[j]] })
	fmt.Printf("chunk %d,%d (dimension %d, height %d..%d, populated %v):\n",
		pos.X(), pos.Z(), dim, c.MinHeight(), c.MaxHeight(), c.TerrainPopulated())
	for _, m := range materials {
		fmt.Printf("  %-32s %d\n", m.Name(), counts[m])
	}
	for _, be := range c.BlockEntities() {
		fmt.Printf("  block entity %s at %d,%d,%d\n", be.Type, be.X, be.Y, be.Z)
	}
}
