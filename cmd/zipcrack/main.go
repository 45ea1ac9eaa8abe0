// Command-line entry point for zipcrack.
//
// zipcrack recovers the internal state of the legacy ZIP stream cipher
// from known plaintext, then decrypts entries with it. The recovered
// three words are equivalent to the password-derived key: they unlock
// every entry protected with the same password, without the password.
//
// Typical session:
//
//	zipcrack crack -cipher-zip secrets.zip -cipher-file file.txt \
//	    -plain-zip plain.zip -plain-file file.txt
//	zipcrack decipher -zip secrets.zip -file file.txt \
//	    -x 8879dfed -y 14335b6b -z 8dc58b53 -output file.txt.raw
//
// The plaintext must be at least 12 contiguous bytes and must align with
// the ciphertext region (use -offset when it starts mid-entry). Note
// that decipher yields the entry's *stored* data: if the entry was
// compressed before encryption, the output still needs inflating.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"zipcrack/internal/attack"
	"zipcrack/internal/feed"
	"zipcrack/internal/storage"
	"zipcrack/internal/ziparchive"
	"zipcrack/internal/zipcipher"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "zipcrack - known-plaintext attack on ZipCrypto archives:")
	fmt.Fprintln(w, "  crack     - recover the cipher state from known plaintext")
	fmt.Fprintln(w, "  decipher  - decrypt an entry's stored data with recovered keys")
	fmt.Fprintln(w, "  worker    - consume crack jobs from NATS")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  zipcrack crack -cipher-zip a.zip -cipher-file f -plain-zip b.zip -plain-file f [-offset N] [-workers N] [-cache keys.db]")
	fmt.Fprintln(w, "  zipcrack crack -cipher-zip a.zip -cipher-file f -plain-file plain.bin")
	fmt.Fprintln(w, "  zipcrack decipher -zip a.zip -file f -x HEX -y HEX -z HEX [-output PATH]")
	fmt.Fprintln(w, "  zipcrack worker -nats nats://localhost:4222 [-cache keys.db] [-pg] [-clickhouse]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - When -plain-zip is omitted, -plain-file names a raw file on disk.")
	fmt.Fprintln(w, "  - -offset aligns the plaintext inside the entry data; it may be negative down to -12.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	switch strings.ToLower(os.Args[1]) {
	case "crack":
		runCrack(os.Args[2:])
	case "decipher":
		runDecipher(os.Args[2:])
	case "worker":
		runWorker(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func now() string {
	return time.Now().Format("15:04:05")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadData loads plaintext and ciphertext per the original alignment
// rules and derives the keystream.
func loadData(cipherZip, cipherFile, plainZip, plainFile string, offset int) (*attack.Data, error) {
	var plaintext []byte
	var err error
	if plainZip != "" {
		plaintext, _, err = ziparchive.ReadMember(plainZip, plainFile, math.MaxInt)
	} else {
		plaintext, err = ziparchive.LoadFile(plainFile, math.MaxInt)
	}
	if err != nil {
		return nil, fmt.Errorf("load plaintext: %w", err)
	}

	if attack.HeaderSize+offset < 0 {
		return nil, attack.ErrOffsetTooSmall
	}
	toRead := attack.HeaderSize + offset + len(plaintext)
	var ciphertext []byte
	if cipherZip != "" {
		ciphertext, _, err = ziparchive.ReadMember(cipherZip, cipherFile, toRead)
	} else {
		ciphertext, err = ziparchive.LoadFile(cipherFile, toRead)
	}
	if err != nil {
		return nil, fmt.Errorf("load ciphertext: %w", err)
	}

	return attack.NewData(ciphertext, plaintext, offset)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func runCrack(args []string) {
	fs := flag.NewFlagSet("crack", flag.ExitOnError)
	cipherZip := fs.String("cipher-zip", "", "encrypted archive")
	cipherFile := fs.String("cipher-file", "", "encrypted member name (or raw file path without -cipher-zip)")
	plainZip := fs.String("plain-zip", "", "archive holding the known plaintext member")
	plainFile := fs.String("plain-file", "", "known plaintext member name (or raw file path without -plain-zip)")
	offset := fs.Int("offset", 0, "plaintext offset inside the entry data (>= -12)")
	workers := fs.Int("workers", 0, "attack worker goroutines (0 = one per CPU)")
	cache := fs.String("cache", "", "SQLite recovered-keys cache path")
	_ = fs.Parse(args)

	if *cipherFile == "" || *plainFile == "" {
		fmt.Fprintln(os.Stderr, "crack requires -cipher-file and -plain-file")
		os.Exit(2)
	}

	// A cache hit makes the whole attack unnecessary.
	var db *storage.SQLiteDB
	var archiveHash string
	if *cache != "" && *cipherZip != "" {
		var err error
		if archiveHash, err = hashFile(*cipherZip); err != nil {
			fail("Hash archive: %v", err)
		}
		if db, err = storage.OpenSQLite(*cache); err != nil {
			fail("Open cache: %v", err)
		}
		defer db.Close()

		if rk, err := db.LookupKeys(archiveHash, *cipherFile, *offset); err == nil {
			fmt.Printf("[%s] Keys (cached)\n%x %x %x\n", now(), rk.X, rk.Y, rk.Z)
			return
		}
	}

	data, err := loadData(*cipherZip, *cipherFile, *plainZip, *plainFile, *offset)
	if err != nil {
		fail("Load data: %v", err)
	}

	zr := attack.NewZReduction(data.Keystream)
	zr.Generate()
	fmt.Printf("Generated %d Z values.\n", zr.Size())

	if len(data.Keystream) > attack.WindowSize {
		fmt.Printf("[%s] Z reduction using %d extra bytes of known plaintext\n", now(), len(data.Keystream)-attack.WindowSize)
		zr.Progress = func(done, total int) {
			fmt.Printf("\r%.2f %% (%d / %d)", float64(done)/float64(total)*100, done, total)
		}
		zr.Reduce()
		fmt.Printf("\n%d values remaining.\n", zr.Size())
	}

	fmt.Printf("[%s] Attack on %d Z values at index %d\n", now(), zr.Size(), *offset+zr.Index())

	var printed atomic.Int64
	keys, err := attack.RecoverFromCandidates(data, zr.Candidates(), zr.Index(), *workers,
		func(done, total int) {
			// Refreshing on every candidate floods the terminal.
			if n := printed.Add(1); n%64 == 0 || done == total {
				fmt.Printf("\r%.2f %% (%d / %d)", float64(done)/float64(total)*100, done, total)
			}
		})
	fmt.Println()
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("[%s] Keys\n%x %x %x\n", now(), keys.X(), keys.Y(), keys.Z())

	if db != nil {
		err := db.RecordKeys(storage.RecoveredKeys{
			ArchiveSHA256: archiveHash,
			Member:        *cipherFile,
			Offset:        *offset,
			X:             keys.X(),
			Y:             keys.Y(),
			Z:             keys.Z(),
			FoundAt:       time.Now(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache write failed: %v\n", err)
		}
	}
}

func parseHex32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	return uint32(v), err
}

func runDecipher(args []string) {
	fs := flag.NewFlagSet("decipher", flag.ExitOnError)
	zipPath := fs.String("zip", "", "encrypted archive")
	member := fs.String("file", "", "member to decrypt")
	xHex := fs.String("x", "", "recovered X (hex)")
	yHex := fs.String("y", "", "recovered Y (hex)")
	zHex := fs.String("z", "", "recovered Z (hex)")
	output := fs.String("output", "", "output path (default stdout)")
	_ = fs.Parse(args)

	if *zipPath == "" || *member == "" || *xHex == "" || *yHex == "" || *zHex == "" {
		fmt.Fprintln(os.Stderr, "decipher requires -zip, -file, -x, -y and -z")
		os.Exit(2)
	}

	x, errX := parseHex32(*xHex)
	y, errY := parseHex32(*yHex)
	z, errZ := parseHex32(*zHex)
	if errX != nil || errY != nil || errZ != nil {
		fail("Keys must be 32-bit hex values")
	}

	ciphertext, size, err := ziparchive.ReadMember(*zipPath, *member, math.MaxInt)
	if err != nil {
		fail("Load member: %v", err)
	}
	if len(ciphertext) < size {
		fail("Member is truncated: got %d of %d bytes", len(ciphertext), size)
	}

	keys := zipcipher.NewKeys()
	keys.Set(x, y, z)
	plain, err := attack.Decipher(*keys, ciphertext)
	if err != nil {
		fail("Decipher: %v", err)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fail("Create output: %v", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(plain); err != nil {
		fail("Write output: %v", err)
	}
}

// workerStores groups the optional persistence backends of a worker.
type workerStores struct {
	cache *storage.SQLiteDB
	pg    *storage.PostgresDB
	ch    *storage.ClickHouseDB
}

func runWorker(args []string) {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	natsURL := fs.String("nats", envOrDefault("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	jobSubject := fs.String("job-subject", "", "job subject (default "+feed.DefaultJobSubject+")")
	resultSubject := fs.String("result-subject", "", "result subject (default "+feed.DefaultResultSubject+")")
	workers := fs.Int("workers", 0, "attack worker goroutines per job (0 = one per CPU)")
	cache := fs.String("cache", "", "SQLite recovered-keys cache path")
	usePG := fs.Bool("pg", false, "record keys and runs to PostgreSQL (POSTGRES_* env)")
	useCH := fs.Bool("clickhouse", false, "record run telemetry to ClickHouse (CLICKHOUSE_* env)")
	_ = fs.Parse(args)

	ctx := context.Background()
	var stores workerStores
	if *cache != "" {
		db, err := storage.OpenSQLite(*cache)
		if err != nil {
			fail("Open cache: %v", err)
		}
		defer db.Close()
		stores.cache = db
	}
	if *usePG {
		cfg := storage.DefaultConfig().Postgres
		cfg.Host = envOrDefault("POSTGRES_HOST", cfg.Host)
		cfg.Database = envOrDefault("POSTGRES_DATABASE", cfg.Database)
		cfg.User = envOrDefault("POSTGRES_USER", cfg.User)
		cfg.Password = envOrDefault("POSTGRES_PASSWORD", cfg.Password)
		pg, err := storage.OpenPostgres(ctx, cfg)
		if err != nil {
			fail("Open postgres: %v", err)
		}
		defer pg.Close()
		if err := pg.CreateSchema(ctx); err != nil {
			fail("Create postgres schema: %v", err)
		}
		stores.pg = pg
	}
	if *useCH {
		cfg := storage.DefaultConfig().ClickHouse
		cfg.Host = envOrDefault("CLICKHOUSE_HOST", cfg.Host)
		cfg.Database = envOrDefault("CLICKHOUSE_DATABASE", cfg.Database)
		cfg.User = envOrDefault("CLICKHOUSE_USER", cfg.User)
		cfg.Password = envOrDefault("CLICKHOUSE_PASSWORD", cfg.Password)
		ch, err := storage.OpenClickHouse(ctx, cfg)
		if err != nil {
			fail("Open clickhouse: %v", err)
		}
		defer ch.Close()
		if err := ch.CreateSchema(ctx); err != nil {
			fail("Create clickhouse schema: %v", err)
		}
		stores.ch = ch
	}

	conn, err := feed.Connect(*natsURL, *jobSubject, *resultSubject)
	if err != nil {
		fail("%v", err)
	}
	defer conn.Close()

	sub, err := conn.SubscribeJobs(func(job feed.Job) {
		res := handleJob(ctx, job, *workers, stores)
		if err := conn.PublishResult(res); err != nil {
			fmt.Fprintf(os.Stderr, "Publish result for %s: %v\n", job.ID, err)
		}
	}, func(err error) {
		fmt.Fprintf(os.Stderr, "Bad job message: %v\n", err)
	})
	if err != nil {
		fail("%v", err)
	}
	defer sub.Unsubscribe()

	fmt.Printf("[%s] Worker listening on %s\n", now(), *natsURL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Printf("\n[%s] Shutting down\n", now())
}

func handleJob(ctx context.Context, job feed.Job, workers int, stores workerStores) feed.Result {
	started := time.Now()
	res := feed.Result{JobID: job.ID, FinishedAt: started}

	data, err := loadData(job.CipherArchive, job.CipherMember, job.PlainArchive, plainSource(job), job.Offset)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	zr := attack.NewZReduction(data.Keystream)
	zr.Generate()
	run := storage.CrackRun{
		Member:         job.CipherMember,
		PlainMember:    job.PlainMember,
		Offset:         job.Offset,
		PlaintextLen:   len(data.Plaintext),
		SeedCandidates: zr.Size(),
		StartedAt:      started,
	}
	if hash, err := hashFile(job.CipherArchive); err == nil {
		run.ArchiveSHA256 = hash
	}

	if len(data.Keystream) > attack.WindowSize {
		zr.Reduce()
	}
	res.Candidates = zr.Size()
	run.Candidates = zr.Size()
	run.Index = zr.Index()

	keys, err := attack.RecoverFromCandidates(data, zr.Candidates(), zr.Index(), workers, nil)
	run.Duration = time.Since(started)
	res.Duration = run.Duration.String()
	res.FinishedAt = time.Now()
	if err == nil {
		res.Found = true
		res.X, res.Y, res.Z = keys.X(), keys.Y(), keys.Z()
		run.Found = true
		run.X, run.Y, run.Z = keys.X(), keys.Y(), keys.Z()
	} else {
		res.Error = err.Error()
	}

	recordRun(ctx, stores, run)
	return res
}

// recordRun fans the outcome out to whichever stores are configured.
// Store failures are reported but never fail the job.
func recordRun(ctx context.Context, stores workerStores, run storage.CrackRun) {
	if run.Found {
		rk := storage.RecoveredKeys{
			ArchiveSHA256: run.ArchiveSHA256,
			Member:        run.Member,
			Offset:        run.Offset,
			X:             run.X,
			Y:             run.Y,
			Z:             run.Z,
			FoundAt:       time.Now(),
		}
		if stores.cache != nil {
			if err := stores.cache.RecordKeys(rk); err != nil {
				fmt.Fprintf(os.Stderr, "Cache write failed: %v\n", err)
			}
		}
		if stores.pg != nil {
			if err := stores.pg.UpsertKeys(ctx, rk); err != nil {
				fmt.Fprintf(os.Stderr, "Postgres write failed: %v\n", err)
			}
		}
	}
	if stores.pg != nil {
		if err := stores.pg.RecordRun(ctx, run); err != nil {
			fmt.Fprintf(os.Stderr, "Postgres run record failed: %v\n", err)
		}
	}
	if stores.ch != nil {
		if err := stores.ch.InsertRuns(ctx, []storage.CrackRun{run}); err != nil {
			fmt.Fprintf(os.Stderr, "ClickHouse run record failed: %v\n", err)
		}
	}
}

// plainSource picks the plaintext source for a job: a member name when a
// plain archive is given, a raw path otherwise.
func plainSource(job feed.Job) string {
	if job.PlainArchive != "" {
		return job.PlainMember
	}
	return job.PlainFile
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
