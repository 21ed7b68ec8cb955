package wallet

import (
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tcfw/utxochain/pkg/cryptography"
	"github.com/tcfw/utxochain/pkg/wallet"
)

const (
	keyTypeSecp256k1 = "secp256k1"
)

type WalletFile struct {
	Wallets []WalletFileEntry `yaml:"wallets"`
}

type WalletFileEntry struct {
	Type string `yaml:"type"`
	Data string `yaml:"data"`
}

var _ wallet.Store = (*FileStore)(nil)

// FileStore keeps wallet private keys in a yaml file
type FileStore struct {
	path    string
	wallets WalletFile
	idx     map[string]*wallet.Wallet

	mu sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "creating wallet dir")
	}

	f := &FileStore{path: path}
	if err := f.read(); err != nil {
		return nil, err
	}

	return f, nil
}

func (fs *FileStore) read() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return errors.Wrap(err, "opening wallet file for read")
	}
	defer f.Close()

	d, err := ioutil.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading wallet file")
	}

	if err := yaml.Unmarshal(d, &fs.wallets); err != nil {
		return errors.Wrap(err, "unmarshalling wallet data")
	}

	return fs.buildIdx()
}

func (fs *FileStore) buildIdx() error {
	//assumes locked fs.mu

	fs.idx = make(map[string]*wallet.Wallet, len(fs.wallets.Wallets))

	for _, e := range fs.wallets.Wallets {
		w, err := fs.decodeType(e.Type, e.Data)
		if err != nil {
			return errors.Wrap(err, "decoding wallet")
		}

		fs.idx[w.Address()] = w
	}

	return nil
}

func (fs *FileStore) decodeType(t string, data string) (*wallet.Wallet, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding b64 wallet data")
	}

	switch t {
	case keyTypeSecp256k1:
		return wallet.FromPrivateKey(raw)
	default:
		return nil, fmt.Errorf("unknown key type %s", t)
	}
}

// Create generates a new wallet and persists it
func (fs *FileStore) Create() (*wallet.Wallet, error) {
	w, err := wallet.New()
	if err != nil {
		return nil, errors.Wrap(err, "generating wallet")
	}

	if err := fs.Add(w); err != nil {
		return nil, err
	}

	return w, nil
}

func (fs *FileStore) Add(w *wallet.Wallet) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	//check if in idx
	if _, ok := fs.idx[w.Address()]; ok {
		return nil
	}

	pk, err := w.PrivateKey().Bytes()
	if err != nil {
		return errors.Wrap(err, "encoding private key")
	}

	fs.wallets.Wallets = append(fs.wallets.Wallets, WalletFileEntry{
		Type: keyTypeSecp256k1,
		Data: base64.StdEncoding.EncodeToString(pk),
	})
	fs.idx[w.Address()] = w

	return fs.write()
}

func (fs *FileStore) write() error {
	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return errors.Wrap(err, "opening wallet file for write")
	}
	defer f.Close()

	d, err := yaml.Marshal(&fs.wallets)
	if err != nil {
		return errors.Wrap(err, "marshalling wallet data")
	}

	if err := f.Truncate(0); err != nil {
		return errors.Wrap(err, "truncating wallet file")
	}

	_, err = f.Write(d)
	return err
}

// Find looks up the wallet owning address. Addresses failing their checksum
// are rejected before the lookup.
func (fs *FileStore) Find(address string) (*wallet.Wallet, error) {
	if _, err := cryptography.PubKeyHashFromAddress(address); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	w, ok := fs.idx[address]
	if !ok {
		return nil, errors.Wrap(wallet.ErrWalletNotFound, address)
	}

	return w, nil
}

func (fs *FileStore) Addresses() ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	addrs := make([]string, 0, len(fs.idx))
	for a := range fs.idx {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	return addrs, nil
}
