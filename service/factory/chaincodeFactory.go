package factory

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	lcpackager "github.com/hyperledger/fabric-sdk-go/pkg/fab/ccpackager/lifecycle"
	"github.com/pkg/errors"

	"hyperbench/model"
)

type ChaincodeFactory struct{}

func NewChaincodeFactory() *ChaincodeFactory {
	return &ChaincodeFactory{}
}

// NewPackage builds the install package of src and derives its package id.
func (cf *ChaincodeFactory) NewPackage(src *model.ChaincodeSource) (*model.ChaincodePackage, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	label := src.Label()
	var (
		payload []byte
		err     error
	)
	switch src.Kind {
	case model.ChaincodeGolang:
		payload, err = lcpackager.NewCCPackage(&lcpackager.Descriptor{
			Path:  src.Path,
			Type:  pb.ChaincodeSpec_GOLANG,
			Label: label,
		})
	case model.ChaincodeExternal:
		payload, err = PackageExternal(label, src.Address)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "fail to package %s", label)
	}

	return &model.ChaincodePackage{
		Name:      src.Name,
		Version:   src.Version,
		Kind:      src.Kind,
		Label:     label,
		PackageID: lcpackager.ComputePackageID(label, payload),
		Payload:   payload,
	}, nil
}

type connectionJSON struct {
	Address     string `json:"address"`
	DialTimeout string `json:"dial_timeout"`
	TLSRequired bool   `json:"tls_required"`
}

type metadataJSON struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// PackageExternal bundles the connection and metadata documents of a chaincode
// served outside the peer. Equal inputs give equal bytes.
func PackageExternal(label, address string) ([]byte, error) {
	conn, err := json.Marshal(connectionJSON{Address: address, DialTimeout: "10s"})
	if err != nil {
		return nil, err
	}
	code, err := tarGz(map[string][]byte{"connection.json": conn}, "connection.json")
	if err != nil {
		return nil, errors.WithMessage(err, "fail to generate code.tar.gz")
	}

	meta, err := json.Marshal(metadataJSON{Type: "external", Label: label})
	if err != nil {
		return nil, err
	}
	pkg, err := tarGz(map[string][]byte{
		"code.tar.gz":   code,
		"metadata.json": meta,
	}, "code.tar.gz", "metadata.json")
	if err != nil {
		return nil, errors.WithMessage(err, "fail to generate package")
	}
	return pkg, nil
}

func tarGz(files map[string][]byte, order ...string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	gw := gzip.NewWriter(buf)
	tw := tar.NewWriter(gw)

	for _, name := range order {
		if err := writePackage(tw, name, files[name]); err != nil {
			return nil, errors.WithMessagef(err, "fail to write %s", name)
		}
	}

	err := tw.Close()
	if err == nil {
		err = gw.Close()
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePackage(tw *tar.Writer, name string, payload []byte) error {
	err := tw.WriteHeader(
		&tar.Header{
			Name: name,
			Size: int64(len(payload)),
			Mode: 0100644,
		},
	)
	if err != nil {
		return err
	}

	_, err = tw.Write(payload)
	return err
}
