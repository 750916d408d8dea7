package keylock_test

import (
	"sync"
	"testing"

	"github.com/okian/affinity/pkg/keylock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRing(t *testing.T) {
	Convey("Given a lock ring", t, func() {
		Convey("When created with defaults", func() {
			r := keylock.NewRing()

			Convey("Then it should carry the default shard count", func() {
				So(r.ShardCount(), ShouldEqual, 256)
			})
		})

		Convey("When created with a custom shard count", func() {
			r := keylock.NewRing(keylock.WithShardCount(8))

			Convey("Then it should carry that count", func() {
				So(r.ShardCount(), ShouldEqual, 8)
			})
		})

		Convey("When created with a non-positive shard count", func() {
			r := keylock.NewRing(keylock.WithShardCount(0))

			Convey("Then the default should be kept", func() {
				So(r.ShardCount(), ShouldEqual, 256)
			})
		})

		Convey("When many goroutines update shared state under the same key", func() {
			r := keylock.NewRing()

			counter := 0
			var wg sync.WaitGroup
			for g := 0; g < 16; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 500; i++ {
						r.Do("user-42", func() {
							counter++
						})
					}
				}()
			}
			wg.Wait()

			Convey("Then every increment should be serialized", func() {
				So(counter, ShouldEqual, 16*500)
			})
		})

		Convey("When goroutines use distinct keys", func() {
			r := keylock.NewRing(keylock.WithShardCount(4))

			var mu sync.Mutex
			done := make(map[string]int)
			var wg sync.WaitGroup
			keys := []string{"a", "b", "c", "d", "e", "f"}
			for _, k := range keys {
				wg.Add(1)
				go func(k string) {
					defer wg.Done()
					r.Do(k, func() {
						mu.Lock()
						done[k]++
						mu.Unlock()
					})
				}(k)
			}
			wg.Wait()

			Convey("Then every key should have run exactly once", func() {
				So(len(done), ShouldEqual, len(keys))
				for _, k := range keys {
					So(done[k], ShouldEqual, 1)
				}
			})
		})

		Convey("When the same key is locked on a single-shard ring", func() {
			r := keylock.NewRing(keylock.WithShardCount(1))

			order := make([]int, 0, 2)
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					r.Do("k", func() {
						order = append(order, i)
					})
				}(i)
			}
			close(start)
			wg.Wait()

			Convey("Then both sections should have run without racing", func() {
				So(len(order), ShouldEqual, 2)
			})
		})
	})
}
