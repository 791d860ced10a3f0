package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"photovault/internal/logging"
	"photovault/internal/metrics"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps one per-user SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS photos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT UNIQUE NOT NULL,
	description TEXT,
	first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
	date_taken DATETIME,
	location_lat REAL,
	location_lon REAL,
	processed_for_thumbnails BOOLEAN DEFAULT 0,
	processed_for_faces BOOLEAN DEFAULT 0,
	processed_for_exif BOOLEAN DEFAULT 0,
	type TEXT
);

CREATE TABLE IF NOT EXISTS people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT DEFAULT 'Unknown',
	thumbnail_path TEXT,
	embedding BLOB
);

CREATE TABLE IF NOT EXISTS photo_people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	photo_id INTEGER NOT NULL,
	person_id INTEGER NOT NULL,
	FOREIGN KEY (photo_id) REFERENCES photos(id),
	FOREIGN KEY (person_id) REFERENCES people(id),
	UNIQUE(photo_id, person_id)
);

CREATE INDEX IF NOT EXISTS idx_photos_path ON photos(path);
CREATE INDEX IF NOT EXISTS idx_photos_pending_faces
	ON photos(processed_for_faces) WHERE processed_for_faces = 0;
CREATE INDEX IF NOT EXISTS idx_photo_people_photo ON photo_people(photo_id);
`

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	connStr := path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; sqlite serializes writes anyway and this
	// avoids SQLITE_BUSY churn under concurrent passes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Debug("opened store at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// InsertPhotoIfAbsent records a newly walked file. It reports whether the
// row was created by this call; an existing row is left untouched.
func (s *Store) InsertPhotoIfAbsent(path string) (int64, bool, error) {
	start := time.Now()
	res, err := s.db.Exec(`INSERT OR IGNORE INTO photos (path) VALUES (?)`, path)
	recordQuery("insert_photo", start, err)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert photo: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected > 0 {
		id, err := res.LastInsertId()
		return id, true, err
	}

	var id int64
	err = s.db.QueryRow(`SELECT id FROM photos WHERE path = ?`, path).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up photo: %w", err)
	}
	return id, false, nil
}

const photoColumns = `id, path, COALESCE(description, ''), first_seen, date_taken,
	location_lat, location_lon,
	processed_for_thumbnails, processed_for_faces, processed_for_exif,
	COALESCE(type, '')`

func scanPhoto(row interface{ Scan(...any) error }) (*Photo, error) {
	var p Photo
	err := row.Scan(&p.ID, &p.Path, &p.Description, &p.FirstSeen, &p.DateTaken,
		&p.Latitude, &p.Longitude,
		&p.ThumbDone, &p.FacesDone, &p.ExifDone, &p.Kind)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PhotoByPath returns the row for path, or nil if none exists.
func (s *Store) PhotoByPath(path string) (*Photo, error) {
	start := time.Now()
	row := s.db.QueryRow(`SELECT `+photoColumns+` FROM photos WHERE path = ?`, path)
	p, err := scanPhoto(row)
	if err == sql.ErrNoRows {
		recordQuery("photo_by_path", start, nil)
		return nil, nil
	}
	recordQuery("photo_by_path", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query photo: %w", err)
	}
	return p, nil
}

// PhotoByID returns the row with the given id, or nil if none exists.
func (s *Store) PhotoByID(id int64) (*Photo, error) {
	start := time.Now()
	row := s.db.QueryRow(`SELECT `+photoColumns+` FROM photos WHERE id = ?`, id)
	p, err := scanPhoto(row)
	if err == sql.ErrNoRows {
		recordQuery("photo_by_id", start, nil)
		return nil, nil
	}
	recordQuery("photo_by_id", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query photo: %w", err)
	}
	return p, nil
}

// PendingFaces returns photos ready for face processing: thumbnail and
// metadata extraction are done but faces are not.
func (s *Store) PendingFaces() ([]*Photo, error) {
	start := time.Now()
	rows, err := s.db.Query(`SELECT ` + photoColumns + ` FROM photos
		WHERE processed_for_thumbnails = 1
		  AND processed_for_exif = 1
		  AND processed_for_faces = 0
		ORDER BY id`)
	recordQuery("pending_faces", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending faces: %w", err)
	}
	defer rows.Close()
	return collectPhotos(rows)
}

// PendingDescriptions returns photos classified as plain photographs that
// have a thumbnail but no description yet.
func (s *Store) PendingDescriptions() ([]*Photo, error) {
	start := time.Now()
	rows, err := s.db.Query(`SELECT ` + photoColumns + ` FROM photos
		WHERE processed_for_thumbnails = 1
		  AND type = 'photo'
		  AND (description IS NULL OR description = '')
		ORDER BY id`)
	recordQuery("pending_descriptions", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending descriptions: %w", err)
	}
	defer rows.Close()
	return collectPhotos(rows)
}

func collectPhotos(rows *sql.Rows) ([]*Photo, error) {
	var photos []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// SetKind records the classified media kind for a photo.
func (s *Store) SetKind(id int64, kind string) error {
	start := time.Now()
	_, err := s.db.Exec(`UPDATE photos SET type = ? WHERE id = ?`, kind, id)
	recordQuery("set_kind", start, err)
	if err != nil {
		return fmt.Errorf("failed to set kind: %w", err)
	}
	return nil
}

// SetDescription records a description for a photo.
func (s *Store) SetDescription(id int64, description string) error {
	start := time.Now()
	_, err := s.db.Exec(`UPDATE photos SET description = ? WHERE id = ?`, description, id)
	recordQuery("set_description", start, err)
	if err != nil {
		return fmt.Errorf("failed to set description: %w", err)
	}
	return nil
}

// SetDescriptionIfEmpty records a description only when none exists yet,
// so placeholder writes never clobber a description set elsewhere.
func (s *Store) SetDescriptionIfEmpty(id int64, description string) error {
	start := time.Now()
	_, err := s.db.Exec(`UPDATE photos SET description = ?
		WHERE id = ? AND (description IS NULL OR description = '')`, description, id)
	recordQuery("set_description", start, err)
	if err != nil {
		return fmt.Errorf("failed to set description: %w", err)
	}
	return nil
}

// SetCaptureMetadata records the capture time and GPS position extracted
// from a photo. Nil values leave the corresponding column untouched.
func (s *Store) SetCaptureMetadata(id int64, taken *time.Time, lat, lon *float64) error {
	start := time.Now()
	_, err := s.db.Exec(`UPDATE photos SET
		date_taken = COALESCE(?, date_taken),
		location_lat = COALESCE(?, location_lat),
		location_lon = COALESCE(?, location_lon)
		WHERE id = ?`, taken, lat, lon, id)
	recordQuery("set_capture_metadata", start, err)
	if err != nil {
		return fmt.Errorf("failed to set capture metadata: %w", err)
	}
	return nil
}

// MarkThumbnailDone flags the thumbnail stage complete.
func (s *Store) MarkThumbnailDone(id int64) error {
	return s.markDone(id, "processed_for_thumbnails", "mark_thumbnail")
}

// MarkExifDone flags the metadata stage complete.
func (s *Store) MarkExifDone(id int64) error {
	return s.markDone(id, "processed_for_exif", "mark_exif")
}

// MarkFacesDone flags the face stage complete.
func (s *Store) MarkFacesDone(id int64) error {
	return s.markDone(id, "processed_for_faces", "mark_faces")
}

func (s *Store) markDone(id int64, column, operation string) error {
	start := time.Now()
	_, err := s.db.Exec(`UPDATE photos SET `+column+` = 1 WHERE id = ?`, id)
	recordQuery(operation, start, err)
	if err != nil {
		return fmt.Errorf("failed to mark %s: %w", column, err)
	}
	return nil
}

// MarkUnidentifiable permanently retires a photo from the pipeline. The
// kind is set to unidentifiable and every processing flag is raised so no
// pass picks the row up again.
func (s *Store) MarkUnidentifiable(id int64) error {
	start := time.Now()
	_, err := s.db.Exec(`UPDATE photos SET
		type = 'unidentifiable',
		processed_for_thumbnails = 1,
		processed_for_exif = 1,
		processed_for_faces = 1
		WHERE id = ?`, id)
	recordQuery("mark_unidentifiable", start, err)
	if err != nil {
		return fmt.Errorf("failed to mark unidentifiable: %w", err)
	}
	return nil
}

// InsertIdentity creates a new gallery identity with its reference
// embedding and face crop.
func (s *Store) InsertIdentity(name, thumbnailPath string, embedding []float32) (int64, error) {
	start := time.Now()
	res, err := s.db.Exec(`INSERT INTO people (name, thumbnail_path, embedding) VALUES (?, ?, ?)`,
		name, thumbnailPath, EncodeEmbedding(embedding))
	recordQuery("insert_identity", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to insert identity: %w", err)
	}
	return res.LastInsertId()
}

// Identities returns every gallery identity. Rows whose embedding blob
// cannot be decoded are skipped with a warning rather than failing the
// whole load.
func (s *Store) Identities() ([]*Person, error) {
	start := time.Now()
	rows, err := s.db.Query(`SELECT id, COALESCE(name, 'Unknown'), COALESCE(thumbnail_path, ''), embedding FROM people ORDER BY id`)
	recordQuery("identities", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var people []*Person
	for rows.Next() {
		var p Person
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.ThumbnailPath, &blob); err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			emb, err := DecodeEmbedding(blob)
			if err != nil {
				logging.Warn("skipping identity %d: %v", p.ID, err)
				continue
			}
			p.Embedding = emb
		}
		people = append(people, &p)
	}
	return people, rows.Err()
}

// LinkPhotoIdentity associates a photo with an identity. Linking the same
// pair twice is a no-op.
func (s *Store) LinkPhotoIdentity(photoID, personID int64) error {
	start := time.Now()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO photo_people (photo_id, person_id) VALUES (?, ?)`,
		photoID, personID)
	recordQuery("link_photo_identity", start, err)
	if err != nil {
		return fmt.Errorf("failed to link photo to identity: %w", err)
	}
	return nil
}

// PhotoIdentities returns the identity ids linked to a photo.
func (s *Store) PhotoIdentities(photoID int64) ([]int64, error) {
	start := time.Now()
	rows, err := s.db.Query(`SELECT person_id FROM photo_people WHERE photo_id = ? ORDER BY person_id`, photoID)
	recordQuery("photo_identities", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query photo identities: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EncodeEmbedding serializes an embedding as little-endian float32 values.
func EncodeEmbedding(embedding []float32) []byte {
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	embedding := make([]float32, len(blob)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return embedding, nil
}
