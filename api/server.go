// Package api exposes the seal service over gRPC. The service descriptor and
// the message codec are written by hand on top of protowire.
package api

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/frankonly/blockseal/block"
	"github.com/frankonly/blockseal/crypto"
	"github.com/frankonly/blockseal/ledger"
	"github.com/frankonly/blockseal/merkle"
	"github.com/frankonly/blockseal/seal"
	"github.com/frankonly/blockseal/storage"
)

type Server struct {
	sealer    *seal.Service
	logger    *zap.SugaredLogger
	maxPixels int
}

type Option func(*Server)

// WithMaxPixels bounds the width times height of incoming images
func WithMaxPixels(n int) Option {
	return func(s *Server) {
		s.maxPixels = n
	}
}

func NewServer(sealer *seal.Service, logger *zap.SugaredLogger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{sealer: sealer, logger: logger, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Seal(ctx context.Context, in *SealRequest) (*SealResponse, error) {
	img, err := decodeImage(in.Image, s.maxPixels)
	if err != nil {
		return nil, s.toStatus("seal", err)
	}

	receipt, err := s.sealer.Seal(ctx, img)
	if err != nil {
		return nil, s.toStatus("seal", err)
	}

	return &SealResponse{
		BlockHash: receipt.BlockHash,
		Root:      receipt.Root,
		Leaves:    uint32(receipt.Leaves),
		Width:     uint32(receipt.Grid.Width),
		Height:    uint32(receipt.Grid.Height),
		BlockSize: uint32(receipt.Grid.BlockSize),
	}, nil
}

func (s *Server) Verify(ctx context.Context, in *VerifyRequest) (*VerifyResponse, error) {
	img, err := decodeImage(in.Image, s.maxPixels)
	if err != nil {
		return nil, s.toStatus("verify", err)
	}

	report, err := s.sealer.Verify(ctx, in.BlockHash, img)
	if err != nil {
		return nil, s.toStatus("verify", err)
	}

	regions := make([]Region, 0, len(report.Regions))
	for _, rect := range report.Regions {
		regions = append(regions, Region{
			X:    uint32(rect.Min.X),
			Y:    uint32(rect.Min.Y),
			Size: uint32(rect.Dx()),
		})
	}

	return &VerifyResponse{
		BlockHash: report.BlockHash,
		Vector:    encodeVector(report.Vector),
		Regions:   regions,
	}, nil
}

func (s *Server) Restore(ctx context.Context, in *RestoreRequest) (*RestoreResponse, error) {
	img, err := decodeImage(in.Image, s.maxPixels)
	if err != nil {
		return nil, s.toStatus("restore", err)
	}

	vector, err := decodeVector(in.Vector)
	if err != nil {
		return nil, s.toStatus("restore", err)
	}

	restored, err := s.sealer.Restore(ctx, in.BlockHash, img, vector)
	if err != nil {
		return nil, s.toStatus("restore", err)
	}

	out, err := encodePNG(restored)
	if err != nil {
		return nil, s.toStatus("restore", err)
	}

	return &RestoreResponse{Image: out}, nil
}

func (s *Server) GetBlock(_ context.Context, in *GetBlockRequest) (*GetBlockResponse, error) {
	b, err := s.sealer.Block(in.BlockHash)
	if err != nil {
		return nil, s.toStatus("get block", err)
	}

	return &GetBlockResponse{Hash: b.Hash(), Block: b}, nil
}

func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, ErrInvalidImage),
		errors.Is(err, ErrImageTooLarge),
		errors.Is(err, ErrInvalidVector),
		errors.Is(err, block.ErrInvalidBlockSize),
		errors.Is(err, block.ErrInvalidDimensions),
		errors.Is(err, block.ErrOutOfRange),
		errors.Is(err, merkle.ErrNoLeaves),
		errors.Is(err, merkle.ErrLeafCountMismatch),
		errors.Is(err, storage.ErrInvalidHandle):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, seal.ErrDimensionMismatch),
		errors.Is(err, seal.ErrRootMismatch),
		errors.Is(err, seal.ErrNotSealed),
		errors.Is(err, crypto.ErrUnknownAlgorithm),
		errors.Is(err, crypto.ErrInvalidSalt):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		s.logger.Errorw("request failed", "op", op, "error", err)
		return status.Error(codes.Internal, err.Error())
	}
}
