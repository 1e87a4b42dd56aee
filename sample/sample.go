/*
Copyright © 2020 the InMAP authors.
This file is part of RoadHeat.

RoadHeat is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RoadHeat is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RoadHeat.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package sample takes random subsamples of rows from sets of CSV files.
package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
)

// Partition is one independent input, typically a file.
type Partition struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FilePartitions returns one partition per file path.
func FilePartitions(paths []string) []Partition {
	o := make([]Partition, len(paths))
	for i, p := range paths {
		path := p
		o[i] = Partition{
			Name: filepath.Base(path),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		}
	}
	return o
}

// Sampler keeps each data row of its input partitions with probability
// Fraction. The first row of every partition is a header and is never kept.
type Sampler struct {
	Fraction float64
	Seed     int64

	// Workers is the number of partitions sampled concurrently. If it is
	// not positive, runtime.GOMAXPROCS(0) is used.
	Workers int

	// Progress, if not nil, is called after each partition is sampled
	// with the number of rows kept. It may be called concurrently.
	Progress func(p Partition, kept int)
}

// Rows samples partitions using the default Sampler settings.
func Rows(partitions []Partition, fraction float64, seed int64, workers int) ([][]string, error) {
	s := &Sampler{Fraction: fraction, Seed: seed, Workers: workers}
	return s.Rows(partitions)
}

// Rows returns the kept rows of all partitions. Rows from one partition
// stay in file order, but partitions appear in no particular order. The
// rows kept from each partition depend only on Seed and the partition's
// position in partitions. The first error stops the batch.
func (s *Sampler) Rows(partitions []Partition) ([][]string, error) {
	if !(s.Fraction >= 0 && s.Fraction <= 1) {
		return nil, fmt.Errorf("sample: fraction %g is outside [0, 1]", s.Fraction)
	}
	nprocs := s.Workers
	if nprocs <= 0 {
		nprocs = runtime.GOMAXPROCS(0)
	}

	jobChan := make(chan int, len(partitions))
	for i := range partitions {
		jobChan <- i
	}
	close(jobChan)

	var (
		wg       sync.WaitGroup
		lock     sync.Mutex
		failed   int32
		firstErr error
		out      [][]string
	)
	for w := 0; w < nprocs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local [][]string
			for i := range jobChan {
				if atomic.LoadInt32(&failed) != 0 {
					return
				}
				rows, err := s.partition(i, partitions[i])
				if err != nil {
					lock.Lock()
					if firstErr == nil {
						firstErr = err
					}
					lock.Unlock()
					atomic.StoreInt32(&failed, 1)
					return
				}
				if s.Progress != nil {
					s.Progress(partitions[i], len(rows))
				}
				local = append(local, rows...)
			}
			lock.Lock()
			out = append(out, local...)
			lock.Unlock()
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (s *Sampler) partition(i int, p Partition) ([][]string, error) {
	f, err := p.Open()
	if err != nil {
		return nil, fmt.Errorf("sample: opening %s: %v", p.Name, err)
	}
	defer f.Close()

	rng := rand.New(rand.NewSource(PartitionSeed(s.Seed, i)))
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("sample: reading %s: %v", p.Name, err)
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("sample: reading %s: %v", p.Name, err)
		}
		if rng.Float64() >= s.Fraction {
			continue
		}
		rows = append(rows, rec)
	}
}

// PartitionSeed derives the seed of partition i from the batch seed.
// Different partitions get unrelated random streams.
func PartitionSeed(seed int64, i int) int64 {
	z := uint64(seed) + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
