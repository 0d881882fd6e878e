// Package profile derives output directory trees from a source tree.
//
// A collection is modeled as a tree of profiles. The root profile wraps a
// directory of original, externally managed files; every other profile owns
// one destination directory and derives its contents from its parent's
// directory, using symlinks where the bytes can be shared and a
// caller-supplied conversion routine where they cannot.
//
// Derivation is incremental: converted files are only rebuilt when the
// source modification time no longer matches the destination, and a cleanup
// pass removes outputs whose source has disappeared without touching
// anything the pass did not decide to own.
//
// Basic usage:
//
//	root := profile.NewRootProfile("/music/master")
//	pub := profile.NewFilterProfile("/music/public", root, selectPublic)
//	profile.NewConvertProfile("/music/portable", pub, selectMP3, transcode)
//	if err := root.GenerateAll(); err != nil {
//		log.Fatal(err)
//	}
package profile
