// Command corestore is a small front-end exercising the module's
// content provider and static indexer against a file-backed store
// rooted at a directory.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/hash"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/index"
	"github.com/dolthub/corestore/provider"
	"github.com/dolthub/corestore/storage"
	"github.com/dolthub/corestore/treenode"
)

// indexKeyLength is the fixed width every index key is hashed down to
// before reaching the Static Indexer, matching corestore.DefaultConfig's
// IndexKeyLength (spec.md §6).
const indexKeyLength = hash.ByteLen

// indexRootFile is the name of the file, kept alongside the blob store's
// directory, that records the index's current root TreeIdentifier
// between CLI invocations. It is not itself content-addressed: it is a
// single mutable pointer, the same role a ref file plays next to a
// content store.
const indexRootFile = "index-root"

var (
	app = kingpin.New("corestore", "content-addressed storage and indexing engine")
	dir = app.Flag("dir", "root directory for the file-backed blob store").Default(".corestore").String()

	putCmd  = app.Command("put", "write a file's contents and print its identifier")
	putFile = putCmd.Arg("file", "path to read").Required().String()

	catCmd = app.Command("cat", "read the payload named by an identifier and write it to stdout")
	catID  = catCmd.Arg("id", "hex-encoded identifier").Required().String()

	aliasCmd   = app.Command("alias", "register an alias for an identifier")
	aliasKey   = aliasCmd.Arg("key", "alias key").Required().String()
	aliasIDArg = aliasCmd.Arg("id", "hex-encoded identifier").Required().String()

	resolveCmd = app.Command("resolve", "resolve an alias key to its identifier")
	resolveKey = resolveCmd.Arg("key", "alias key").Required().String()

	indexCmd = app.Command("index", "manage the static index")

	indexPutCmd  = indexCmd.Command("put", "insert a key/identifier pair into the index")
	indexPutKey  = indexPutCmd.Arg("key", "index key (hashed to the indexer's fixed width)").Required().String()
	indexPutID   = indexPutCmd.Arg("id", "hex-encoded identifier to index").Required().String()
	indexPutSize = indexPutCmd.Arg("size", "logical size of the indexed payload, in bytes").Required().Uint64()

	indexGetCmd = indexCmd.Command("get", "look up a key in the index")
	indexGetKey = indexGetCmd.Arg("key", "index key").Required().String()
)

func main() {
	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case putCmd.FullCommand():
		exitOn(runPut(*dir, *putFile))
	case catCmd.FullCommand():
		exitOn(runCat(*dir, *catID))
	case aliasCmd.FullCommand():
		exitOn(runAlias(*dir, *aliasKey, *aliasIDArg))
	case resolveCmd.FullCommand():
		exitOn(runResolve(*dir, *resolveKey))
	case indexPutCmd.FullCommand():
		exitOn(runIndexPut(*dir, *indexPutKey, *indexPutID, *indexPutSize))
	case indexGetCmd.FullCommand():
		exitOn(runIndexGet(*dir, *indexGetKey))
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "corestore:", err)
		os.Exit(1)
	}
}

func openProvider(dir string) (*provider.Provider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dir, err)
	}
	blobs := storage.NewFileBlobStore(dir)
	aliases, err := storage.NewFileAliasStore(filepath.Join(dir, "aliases.json"))
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dir, err)
	}
	return provider.New(blobs, aliases, provider.DefaultConfig()), nil
}

func runPut(dir, path string) error {
	p, err := openProvider(dir)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	theID, err := p.Write(context.Background(), data)
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", theID.Encode())
	return nil
}

func runCat(dir, hexID string) error {
	p, err := openProvider(dir)
	if err != nil {
		return err
	}
	theID, err := decodeHexID(hexID)
	if err != nil {
		return err
	}
	data, err := p.Read(context.Background(), theID)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runAlias(dir, key, hexID string) error {
	p, err := openProvider(dir)
	if err != nil {
		return err
	}
	theID, err := decodeHexID(hexID)
	if err != nil {
		return err
	}
	aliasID, err := p.RegisterAlias(context.Background(), []byte(key), theID)
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", aliasID.Encode())
	return nil
}

func runResolve(dir, key string) error {
	p, err := openProvider(dir)
	if err != nil {
		return err
	}
	theID, err := p.ResolveAlias(context.Background(), []byte(key))
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", theID.Encode())
	return nil
}

func runIndexPut(dir, key, hexID string, size uint64) error {
	p, err := openProvider(dir)
	if err != nil {
		return err
	}
	leaf, err := decodeHexID(hexID)
	if err != nil {
		return err
	}

	ix := index.New(treenode.NewStore(p), indexKeyLength, index.DefaultMinChildrenPerLayer, index.DefaultMaxChildrenPerLayer)
	ctx := context.Background()

	rootID, err := readIndexRoot(ctx, dir, ix)
	if err != nil {
		return err
	}
	rootID, err = ix.Insert(ctx, rootID, indexKey(key), leaf, size)
	if err != nil {
		return err
	}
	return writeIndexRoot(dir, rootID)
}

func runIndexGet(dir, key string) error {
	p, err := openProvider(dir)
	if err != nil {
		return err
	}
	ix := index.New(treenode.NewStore(p), indexKeyLength, index.DefaultMinChildrenPerLayer, index.DefaultMaxChildrenPerLayer)
	ctx := context.Background()

	rootID, err := readIndexRoot(ctx, dir, ix)
	if err != nil {
		return err
	}
	leaf, ok, err := ix.Get(ctx, rootID, indexKey(key))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("index: key %q: %w", key, errs.ErrLeafNotFound)
	}
	fmt.Printf("%x\n", leaf.Encode())
	return nil
}

// indexKey hashes an arbitrary command-line key down to the fixed width
// the static indexer requires, rather than asking callers to supply
// already-fixed-width keys on a shell command line.
func indexKey(key string) []byte {
	h := hash.Of([]byte(key))
	return h[:]
}

// readIndexRoot loads the persisted root from indexRootFile, creating a
// fresh empty tree the first time a directory is used as an index.
func readIndexRoot(ctx context.Context, dir string, ix *index.Indexer) (treenode.TreeIdentifier, error) {
	raw, err := os.ReadFile(filepath.Join(dir, indexRootFile))
	if err != nil {
		if os.IsNotExist(err) {
			return ix.NewEmptyRoot(ctx)
		}
		return treenode.TreeIdentifier{}, fmt.Errorf("read index root: %w", err)
	}
	return decodeHexID(string(raw))
}

func writeIndexRoot(dir string, rootID treenode.TreeIdentifier) error {
	return os.WriteFile(filepath.Join(dir, indexRootFile), []byte(fmt.Sprintf("%x", rootID.Encode())), 0o644)
}

func decodeHexID(hexID string) (id.Identifier, error) {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return id.Identifier{}, fmt.Errorf("decode identifier %q: %w", hexID, err)
	}
	theID, _, err := id.Decode(raw)
	if err != nil {
		return id.Identifier{}, err
	}
	return theID, nil
}
